// Package identity maps internal int64 sequence ids to the 128-bit opaque ids
// exposed across the sync boundary, and back.
//
// Layout of an opaque id: bytes 0-5 hold the entity family tag, bytes 6-7 are
// zero, bytes 8-15 hold the internal id big-endian. The transform is pure and
// stateless, so it yields the same value in every process.
package identity

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Family is the 6-byte tag that namespaces opaque ids per entity table.
type Family [6]byte

var (
	FamilyActivity          = Family{'A', 'C', 'T', 'V', 'T', 'Y'}
	FamilyUser              = Family{'U', 'S', 'E', 'R', 0, 0}
	FamilyProduct           = Family{'P', 'R', 'O', 'D', 'U', 'C'}
	FamilyCombo             = Family{'C', 'O', 'M', 'B', 'O', 0}
	FamilyPaymentMethod     = Family{'P', 'A', 'Y', 'M', 'T', 'H'}
	FamilyCashRegister      = Family{'C', 'A', 'S', 'H', 'R', 'G'}
	FamilyClosure           = Family{'C', 'L', 'O', 'S', 'U', 'R'}
	FamilySalesTransaction  = Family{'S', 'A', 'L', 'E', 'T', 'X'}
	FamilyTransactionDetail = Family{'S', 'A', 'L', 'E', 'D', 'T'}
	FamilyPayment           = Family{'S', 'A', 'L', 'E', 'P', 'Y'}
	FamilyMovement          = Family{'I', 'N', 'V', 'M', 'O', 'V'}
)

// ToExternal packs id into an opaque id tagged with f.
func ToExternal(id int64, f Family) uuid.UUID {
	var u uuid.UUID
	copy(u[0:6], f[:])
	binary.BigEndian.PutUint64(u[8:16], uint64(id))
	return u
}

// ToInternal extracts the internal id. The family tag is not checked: an id
// minted for another family yields that family's internal id.
func ToInternal(u uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(u[8:16]))
}

// FamilyOf returns the tag embedded in u.
func FamilyOf(u uuid.UUID) Family {
	var f Family
	copy(f[:], u[0:6])
	return f
}

// OptionalExternal maps a nullable internal id.
func OptionalExternal(id *int64, f Family) *uuid.UUID {
	if id == nil {
		return nil
	}
	u := ToExternal(*id, f)
	return &u
}

// OptionalInternal maps a nullable opaque id.
func OptionalInternal(u *uuid.UUID) *int64 {
	if u == nil {
		return nil
	}
	id := ToInternal(*u)
	return &id
}

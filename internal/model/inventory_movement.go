package model

import "time"

// Movement type ids. The rows are seeded with these fixed ids.
const (
	MovementTypeEntry      int64 = 1
	MovementTypeSale       int64 = 2
	MovementTypeAdjustment int64 = 3
	MovementTypeReturn     int64 = 4
)

// InventoryMovementType names a kind of ledger posting.
type InventoryMovementType struct {
	ID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"uniqueIndex;not null"`
}

// MovementTypeName returns the display name of a movement type id.
func MovementTypeName(id int64) string {
	switch id {
	case MovementTypeEntry:
		return "Entry"
	case MovementTypeSale:
		return "Sale"
	case MovementTypeAdjustment:
		return "Adjustment"
	case MovementTypeReturn:
		return "Return"
	default:
		return "Unknown"
	}
}

// InventoryMovement is an immutable ledger posting.
// NewQuantity = PreviousQuantity + Quantity always holds. Rows are never
// updated or deleted; reversals are new compensating rows.
type InventoryMovement struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	ProductID          int64  `gorm:"not null;index"`
	MovementTypeID     int64  `gorm:"not null"`
	Quantity           int    `gorm:"not null"` // signed delta
	PreviousQuantity   int    `gorm:"not null"`
	NewQuantity        int    `gorm:"not null"`
	Justification      string `gorm:"not null"`
	SalesTransactionID *int64 `gorm:"index"`
	CreatedBy          *int64
	CreatedAt          time.Time
}

package model

import "time"

// Activity is a time-boxed event owning cash registers, products and combos.
// It is master data maintained outside the engine.
type Activity struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is an operator, supervisor or processor referenced by lifecycle events.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"uniqueIndex;not null"`
	FullName  string `gorm:"not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaymentMethod names a tender type. Closures group payments by Name.
type PaymentMethod struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	Name              string `gorm:"uniqueIndex;not null"`
	RequiresReference bool   `gorm:"not null;default:false"`
	IsActive          bool   `gorm:"not null;default:true"`
}

// Payment method names used by closure reconciliation.
const (
	PaymentMethodCash  = "Cash"
	PaymentMethodCard  = "Card"
	PaymentMethodSINPE = "SINPE Mobile"
)

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashRegister is a till inside an activity.
// Lifecycle: created closed -> open -> closed, and it may reopen.
type CashRegister struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	ActivityID       int64  `gorm:"not null;uniqueIndex:idx_register_activity_number"`
	RegisterNumber   int    `gorm:"not null;uniqueIndex:idx_register_activity_number"`
	Name             string `gorm:"not null"`
	IsOpen           bool   `gorm:"not null;default:false"`
	OpenedAt         *time.Time
	ClosedAt         *time.Time
	OperatorUserID   *int64
	SupervisorUserID *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CashRegisterClosure is the reconciliation snapshot written once per close.
// Immutable after creation.
type CashRegisterClosure struct {
	ID                int64           `gorm:"primaryKey;autoIncrement"`
	CashRegisterID    int64           `gorm:"not null;index"`
	OpeningDate       time.Time       `gorm:"not null"`
	ClosingDate       time.Time       `gorm:"not null"`
	TotalTransactions int             `gorm:"not null"`
	TotalItemsSold    int             `gorm:"not null"`
	TotalSalesAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CashCalculated    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CardsCalculated   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SinpeCalculated   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CashDeclared      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// CashDifference = CashDeclared - CashCalculated
	CashDifference   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ClosedByUserID   int64           `gorm:"not null"`
	SupervisorUserID *int64
	Observations     *string
	CreatedAt        time.Time
}

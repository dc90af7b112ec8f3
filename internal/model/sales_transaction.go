package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesStatus is the state of a sale.
type SalesStatus string

const (
	SalesStatusPending   SalesStatus = "Pending"
	SalesStatusCompleted SalesStatus = "Completed"
	SalesStatusCancelled SalesStatus = "Cancelled"
)

// SalesTransaction is one sale on a cash register.
// TotalAmount always equals the sum of its details' TotalAmount.
type SalesTransaction struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	CashRegisterID     int64           `gorm:"not null;index"`
	TransactionNumber  string          `gorm:"uniqueIndex;not null"`
	SalesStatus        SalesStatus     `gorm:"type:varchar(20);not null;index"`
	TransactionDate    time.Time       `gorm:"not null;index"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedBy          *int64
	CancellationReason *string
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Details  []TransactionDetail  `gorm:"foreignKey:SalesTransactionID"`
	Payments []TransactionPayment `gorm:"foreignKey:SalesTransactionID"`
}

// TransactionDetail is a sale line. Exactly one of ProductID / ComboID is set.
// TotalAmount = Quantity x UnitPrice, with UnitPrice copied at creation time.
type TransactionDetail struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	SalesTransactionID int64           `gorm:"not null;index"`
	ProductID          *int64          `gorm:"index"`
	ComboID            *int64          `gorm:"index"`
	Quantity           int             `gorm:"not null"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsCombo            bool            `gorm:"not null;default:false"`
}

// TransactionPayment is one tender applied when completing a sale.
type TransactionPayment struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement"`
	SalesTransactionID int64           `gorm:"not null;index"`
	PaymentMethodID    int64           `gorm:"not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reference          *string
	ProcessedAt        time.Time `gorm:"not null"`
	ProcessedBy        int64     `gorm:"not null"`
}

// TransactionSequence is the per-register, per-business-day counter used to
// number sales.
type TransactionSequence struct {
	CashRegisterID int64     `gorm:"primaryKey"`
	BusinessDate   time.Time `gorm:"primaryKey;type:date"`
	LastValue      int       `gorm:"not null"`
}

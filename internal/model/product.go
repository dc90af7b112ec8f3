package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. CurrentQuantity is written only by inventory
// ledger postings.
type Product struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	ActivityID      int64           `gorm:"not null;index"`
	Code            string          `gorm:"not null"`
	Name            string          `gorm:"not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	InitialQuantity int             `gorm:"not null;default:0"`
	CurrentQuantity int             `gorm:"not null;default:0"`
	AlertQuantity   int             `gorm:"not null;default:0"`
	IsActive        bool            `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BelowAlert reports whether stock has reached the alert threshold.
func (p *Product) BelowAlert() bool {
	return p.AlertQuantity > 0 && p.CurrentQuantity <= p.AlertQuantity
}

// Combo is a bundle sold as a single priced line item.
type Combo struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	ActivityID int64           `gorm:"not null;index"`
	Name       string          `gorm:"not null"`
	ComboPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsActive   bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Items []ComboItem `gorm:"foreignKey:ComboID"`
}

// ComboItem is one component product of a combo.
type ComboItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ComboID   int64 `gorm:"not null;index"`
	ProductID int64 `gorm:"not null;index"`
	Quantity  int   `gorm:"not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// SaleFilter narrows a sales listing.
type SaleFilter struct {
	CashRegisterID *uuid.UUID `json:"cash_register_id"`
	Date           string     `json:"date"   validate:"omitempty,datetime=2006-01-02"` // empty = any day
	Status         string     `json:"status" validate:"omitempty,oneof=Pending Completed Cancelled"`
	Page           int        `json:"page"`
	Limit          int        `json:"limit"  validate:"omitempty,max=200"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// SaleItemRequest references exactly one of a product or a combo.
type SaleItemRequest struct {
	ProductID *uuid.UUID `json:"product_id" validate:"required_without=ComboID,excluded_with=ComboID"`
	ComboID   *uuid.UUID `json:"combo_id"   validate:"required_without=ProductID,excluded_with=ProductID"`
	Quantity  int        `json:"quantity"   validate:"required,min=1"`
}

type CreateSaleRequest struct {
	CashRegisterID uuid.UUID         `json:"cash_register_id" validate:"required"`
	Items          []SaleItemRequest `json:"items"            validate:"required,min=1,dive"`
	CreatedBy      *uuid.UUID        `json:"created_by"`
}

type UpdateSaleRequest struct {
	Items []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

type PaymentRequest struct {
	PaymentMethodID uuid.UUID       `json:"payment_method_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"            validate:"gt=0"`
	Reference       *string         `json:"reference"         validate:"omitempty,max=100"`
}

type CompleteSaleRequest struct {
	Payments    []PaymentRequest `json:"payments"     validate:"required,min=1,dive"`
	ProcessedBy uuid.UUID        `json:"processed_by" validate:"required"`
}

type CancelSaleRequest struct {
	Reason      string     `json:"reason"       validate:"required,max=500"`
	CancelledBy *uuid.UUID `json:"cancelled_by"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleDetailResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id"`
	ComboID     *uuid.UUID      `json:"combo_id"`
	IsCombo     bool            `json:"is_combo"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type PaymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reference       *string         `json:"reference"`
	ProcessedAt     time.Time       `json:"processed_at"`
	ProcessedBy     uuid.UUID       `json:"processed_by"`
}

type SaleResponse struct {
	ID                 uuid.UUID            `json:"id"`
	CashRegisterID     uuid.UUID            `json:"cash_register_id"`
	TransactionNumber  string               `json:"transaction_number"`
	Status             string               `json:"status"`
	TransactionDate    time.Time            `json:"transaction_date"`
	TotalAmount        decimal.Decimal      `json:"total_amount"`
	TotalPaid          decimal.Decimal      `json:"total_paid"`
	Change             decimal.Decimal      `json:"change"`
	Details            []SaleDetailResponse `json:"details"`
	Payments           []PaymentResponse    `json:"payments"`
	CancellationReason *string              `json:"cancellation_reason"`
	CancelledAt        *time.Time           `json:"cancelled_at"`
	CompletedAt        *time.Time           `json:"completed_at"`
}

// SalesSummaryResponse is the per-day (optionally per-register) projection.
type SalesSummaryResponse struct {
	CashRegisterID        *uuid.UUID      `json:"cash_register_id"`
	Date                  string          `json:"date"`
	TotalTransactions     int             `json:"total_transactions"`
	CompletedTransactions int             `json:"completed_transactions"`
	PendingTransactions   int             `json:"pending_transactions"`
	CancelledTransactions int             `json:"cancelled_transactions"`
	TotalSales            decimal.Decimal `json:"total_sales"`
	AverageTransaction    decimal.Decimal `json:"average_transaction"`
	TotalItemsSold        int             `json:"total_items_sold"`
}

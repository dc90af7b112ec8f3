package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateCashRegisterRequest struct {
	ActivityID     uuid.UUID `json:"activity_id"     validate:"required"`
	RegisterNumber int       `json:"register_number" validate:"required,min=1"`
	Name           string    `json:"name"            validate:"required,max=100"`
}

type UpdateCashRegisterRequest struct {
	RegisterNumber int    `json:"register_number" validate:"required,min=1"`
	Name           string `json:"name"            validate:"required,max=100"`
}

type OpenCashRegisterRequest struct {
	OperatorUserID   uuid.UUID  `json:"operator_user_id"   validate:"required"`
	SupervisorUserID *uuid.UUID `json:"supervisor_user_id"`
}

type CloseCashRegisterRequest struct {
	CashDeclared decimal.Decimal `json:"cash_declared" validate:"min=0"`
	ClosedBy     uuid.UUID       `json:"closed_by"     validate:"required"`
	SupervisedBy *uuid.UUID      `json:"supervised_by"`
	Observations *string         `json:"observations"  validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashRegisterResponse struct {
	ID               uuid.UUID  `json:"id"`
	ActivityID       uuid.UUID  `json:"activity_id"`
	RegisterNumber   int        `json:"register_number"`
	Name             string     `json:"name"`
	IsOpen           bool       `json:"is_open"`
	OpenedAt         *time.Time `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at"`
	OperatorUserID   *uuid.UUID `json:"operator_user_id"`
	SupervisorUserID *uuid.UUID `json:"supervisor_user_id"`
}

type ClosureResponse struct {
	ID                uuid.UUID       `json:"id"`
	CashRegisterID    uuid.UUID       `json:"cash_register_id"`
	OpeningDate       time.Time       `json:"opening_date"`
	ClosingDate       time.Time       `json:"closing_date"`
	TotalTransactions int             `json:"total_transactions"`
	TotalItemsSold    int             `json:"total_items_sold"`
	TotalSalesAmount  decimal.Decimal `json:"total_sales_amount"`
	CashCalculated    decimal.Decimal `json:"cash_calculated"`
	CardsCalculated   decimal.Decimal `json:"cards_calculated"`
	SinpeCalculated   decimal.Decimal `json:"sinpe_calculated"`
	CashDeclared      decimal.Decimal `json:"cash_declared"`
	CashDifference    decimal.Decimal `json:"cash_difference"`
	ClosedBy          uuid.UUID       `json:"closed_by"`
	SupervisedBy      *uuid.UUID      `json:"supervised_by"`
	Observations      *string         `json:"observations"`
}

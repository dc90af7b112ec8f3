package dto

import (
	"time"

	"github.com/google/uuid"
)

// StockAdjustmentRequest posts a manual ledger movement outside a sale.
type StockAdjustmentRequest struct {
	ProductID     uuid.UUID  `json:"product_id"    validate:"required"`
	MovementType  string     `json:"movement_type" validate:"required,oneof=Entry Adjustment"`
	Quantity      int        `json:"quantity"      validate:"required"`
	Justification string     `json:"justification" validate:"required,max=250"`
	ActorUserID   *uuid.UUID `json:"actor_user_id"`
}

// MovementFilter narrows a ledger listing.
type MovementFilter struct {
	ProductID          *uuid.UUID
	SalesTransactionID *uuid.UUID
	MovementType       string
	Page               int
	Limit              int
}

type MovementResponse struct {
	ID                 uuid.UUID  `json:"id"`
	ProductID          uuid.UUID  `json:"product_id"`
	MovementType       string     `json:"movement_type"`
	Quantity           int        `json:"quantity"`
	PreviousQuantity   int        `json:"previous_quantity"`
	NewQuantity        int        `json:"new_quantity"`
	Justification      string     `json:"justification"`
	SalesTransactionID *uuid.UUID `json:"sales_transaction_id"`
	CreatedBy          *uuid.UUID `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
}

type MovementListResponse struct {
	Data  []MovementResponse `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// ReconciliationResponse reports whether a product's stock matches its ledger.
type ReconciliationResponse struct {
	ProductID        uuid.UUID   `json:"product_id"`
	InitialQuantity  int         `json:"initial_quantity"`
	MovementsTotal   int         `json:"movements_total"`
	ExpectedQuantity int         `json:"expected_quantity"`
	CurrentQuantity  int         `json:"current_quantity"`
	Consistent       bool        `json:"consistent"`
	BrokenMovements  []uuid.UUID `json:"broken_movements"`
}

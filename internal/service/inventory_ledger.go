package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eventpos/internal/apierror"
	"eventpos/internal/clock"
	"eventpos/internal/dto"
	"eventpos/internal/identity"
	"eventpos/internal/metrics"
	"eventpos/internal/model"
	"eventpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const revertJustification = "cancellation — inventory revert"

// MovementInput is one ledger posting request. Quantity is the signed delta.
type MovementInput struct {
	ProductID          int64
	MovementTypeID     int64
	Quantity           int
	Justification      string
	SalesTransactionID *int64
	ActorID            *int64
}

// InventoryLedger is the only writer of Product.CurrentQuantity. Every
// posting appends exactly one movement and changes exactly one product row.
type InventoryLedger interface {
	// PostMovementTx posts inside the caller's unit of work.
	PostMovementTx(ctx context.Context, tx *gorm.DB, in MovementInput) (*model.InventoryMovement, error)
	// RevertTx posts a compensating Return for every stock line of a
	// completed transaction.
	RevertTx(ctx context.Context, tx *gorm.DB, txn *model.SalesTransaction, actorID *int64) ([]model.InventoryMovement, error)

	AdjustStock(ctx context.Context, req dto.StockAdjustmentRequest) (*dto.MovementResponse, error)
	ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*dto.ReconciliationResponse, error)
}

type inventoryLedger struct {
	tx          repository.TxRunner
	products    repository.ProductRepository
	movements   repository.MovementRepository
	clock       clock.Clock
	strictStock bool
	metrics     *metrics.Metrics
}

func NewInventoryLedger(
	tx repository.TxRunner,
	products repository.ProductRepository,
	movements repository.MovementRepository,
	clk clock.Clock,
	strictStock bool,
	m *metrics.Metrics,
) InventoryLedger {
	return &inventoryLedger{
		tx:          tx,
		products:    products,
		movements:   movements,
		clock:       clk,
		strictStock: strictStock,
		metrics:     m,
	}
}

// ── PostMovementTx ───────────────────────────────────────────────────────────
// One UPDATE moves the quantity and holds the row lock until commit, so the
// previous quantity is derived from the returned value instead of a separate
// read. With strict stock the UPDATE is a compare-and-swap on the result.

func (l *inventoryLedger) PostMovementTx(_ context.Context, tx *gorm.DB, in MovementInput) (*model.InventoryMovement, error) {
	guard := l.strictStock && in.Quantity < 0
	newQty, applied, err := l.products.ApplyDeltaTx(tx, in.ProductID, in.Quantity, guard)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("apply delta to product %d: %w", in.ProductID, err))
	}
	if !applied {
		p, ferr := l.products.FindByIDTx(tx, in.ProductID)
		if ferr != nil {
			return nil, lookupErr(ferr, apierror.CodeProductNotFound, "product", in.ProductID, identity.FamilyProduct)
		}
		return nil, apierror.Validation(apierror.CodeInsufficientStock,
			fmt.Sprintf("insufficient stock for %s", p.Name)).
			WithDetail("product_id", identity.ToExternal(p.ID, identity.FamilyProduct)).
			WithDetail("requested", -in.Quantity).
			WithDetail("available", p.CurrentQuantity)
	}

	mov := &model.InventoryMovement{
		ProductID:          in.ProductID,
		MovementTypeID:     in.MovementTypeID,
		Quantity:           in.Quantity,
		PreviousQuantity:   newQty - in.Quantity,
		NewQuantity:        newQty,
		Justification:      in.Justification,
		SalesTransactionID: in.SalesTransactionID,
		CreatedBy:          in.ActorID,
		CreatedAt:          l.clock.Now(),
	}
	if err := l.movements.CreateTx(tx, mov); err != nil {
		return nil, apierror.Internal(fmt.Errorf("append movement for product %d: %w", in.ProductID, err))
	}
	return mov, nil
}

// ── RevertTx ─────────────────────────────────────────────────────────────────
// Negates the Sale postings linked to the transaction; the combo definition is
// not consulted.

func (l *inventoryLedger) RevertTx(ctx context.Context, tx *gorm.DB, txn *model.SalesTransaction, actorID *int64) ([]model.InventoryMovement, error) {
	sold, err := l.movements.ListBySaleTx(tx, txn.ID, model.MovementTypeSale)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("list sale postings of transaction %d: %w", txn.ID, err))
	}
	txnID := txn.ID
	posted := make([]model.InventoryMovement, 0, len(sold))
	for _, m := range sold {
		mov, err := l.PostMovementTx(ctx, tx, MovementInput{
			ProductID:          m.ProductID,
			MovementTypeID:     model.MovementTypeReturn,
			Quantity:           -m.Quantity,
			Justification:      revertJustification,
			SalesTransactionID: &txnID,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, err
		}
		posted = append(posted, *mov)
	}
	return posted, nil
}

// ── AdjustStock ──────────────────────────────────────────────────────────────
// Direct stock change outside a sale: Entry adds stock, Adjustment corrects
// it in either direction.

func (l *inventoryLedger) AdjustStock(ctx context.Context, req dto.StockAdjustmentRequest) (*dto.MovementResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	typeID := model.MovementTypeAdjustment
	if req.MovementType == model.MovementTypeName(model.MovementTypeEntry) {
		typeID = model.MovementTypeEntry
		if req.Quantity <= 0 {
			return nil, apierror.ValidationFields(map[string]string{"quantity": "gt"})
		}
	}
	if strings.TrimSpace(req.Justification) == "" {
		return nil, apierror.ValidationFields(map[string]string{"justification": "required"})
	}

	in := MovementInput{
		ProductID:      identity.ToInternal(req.ProductID),
		MovementTypeID: typeID,
		Quantity:       req.Quantity,
		Justification:  req.Justification,
		ActorID:        identity.OptionalInternal(req.ActorUserID),
	}

	var mov *model.InventoryMovement
	err := l.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		mov, err = l.PostMovementTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, finish("adjust_stock", err)
	}

	l.metrics.RecordMovement(model.MovementTypeName(typeID))
	log.Info().
		Int64("product_id", mov.ProductID).
		Str("movement_type", model.MovementTypeName(typeID)).
		Int("quantity", mov.Quantity).
		Int("new_quantity", mov.NewQuantity).
		Msg("stock adjusted")

	resp := movementToResponse(mov)
	return &resp, nil
}

// ── ListMovements ────────────────────────────────────────────────────────────

func (l *inventoryLedger) ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	q := repository.MovementQuery{
		ProductID:          identity.OptionalInternal(filter.ProductID),
		SalesTransactionID: identity.OptionalInternal(filter.SalesTransactionID),
		Page:               page,
		Limit:              limit,
	}
	if filter.MovementType != "" {
		id, ok := movementTypeByName(filter.MovementType)
		if !ok {
			return nil, apierror.ValidationFields(map[string]string{"movement_type": "oneof"})
		}
		q.MovementTypeID = &id
	}

	movements, total, err := l.movements.List(ctx, q)
	if err != nil {
		return nil, finish("list_movements", err)
	}
	data := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		data = append(data, movementToResponse(&movements[i]))
	}
	return &dto.MovementListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// ── Reconcile ────────────────────────────────────────────────────────────────
// CurrentQuantity must equal InitialQuantity plus the sum of all postings,
// and every posting must satisfy new = previous + quantity.

func (l *inventoryLedger) Reconcile(ctx context.Context, productID uuid.UUID) (*dto.ReconciliationResponse, error) {
	id := identity.ToInternal(productID)
	p, err := l.products.FindByID(ctx, id)
	if err != nil {
		return nil, finish("reconcile", lookupErr(err, apierror.CodeProductNotFound, "product", id, identity.FamilyProduct))
	}
	movements, err := l.movements.ListByProduct(ctx, id)
	if err != nil {
		return nil, finish("reconcile", err)
	}

	resp := &dto.ReconciliationResponse{
		ProductID:       productID,
		InitialQuantity: p.InitialQuantity,
		CurrentQuantity: p.CurrentQuantity,
		BrokenMovements: []uuid.UUID{},
	}
	for _, m := range movements {
		resp.MovementsTotal += m.Quantity
		if m.NewQuantity != m.PreviousQuantity+m.Quantity {
			resp.BrokenMovements = append(resp.BrokenMovements, identity.ToExternal(m.ID, identity.FamilyMovement))
		}
	}
	resp.ExpectedQuantity = p.InitialQuantity + resp.MovementsTotal
	resp.Consistent = resp.ExpectedQuantity == p.CurrentQuantity && len(resp.BrokenMovements) == 0
	if !resp.Consistent {
		log.Warn().
			Int64("product_id", id).
			Int("expected", resp.ExpectedQuantity).
			Int("current", p.CurrentQuantity).
			Int("broken_movements", len(resp.BrokenMovements)).
			Msg("inventory ledger out of balance")
	}
	return resp, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// stockLine is one product quantity a detail moves. A combo detail expands
// into one line per component.
type stockLine struct {
	productID int64
	quantity  int
}

func expandStockLines(tx *gorm.DB, products repository.ProductRepository, details []model.TransactionDetail) ([]stockLine, error) {
	lines := make([]stockLine, 0, len(details))
	for _, d := range details {
		switch {
		case d.ComboID != nil:
			combo, err := products.FindComboByIDTx(tx, *d.ComboID)
			if err != nil {
				return nil, lookupErr(err, apierror.CodeComboNotFound, "combo", *d.ComboID, identity.FamilyCombo)
			}
			for _, item := range combo.Items {
				lines = append(lines, stockLine{productID: item.ProductID, quantity: item.Quantity * d.Quantity})
			}
		case d.ProductID != nil:
			lines = append(lines, stockLine{productID: *d.ProductID, quantity: d.Quantity})
		default:
			return nil, apierror.Internal(errors.New("transaction detail without product or combo"))
		}
	}
	return lines, nil
}

func movementTypeByName(name string) (int64, bool) {
	for _, id := range []int64{model.MovementTypeEntry, model.MovementTypeSale, model.MovementTypeAdjustment, model.MovementTypeReturn} {
		if model.MovementTypeName(id) == name {
			return id, true
		}
	}
	return 0, false
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}

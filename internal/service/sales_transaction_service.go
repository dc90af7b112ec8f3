package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventpos/internal/apierror"
	"eventpos/internal/clock"
	"eventpos/internal/dto"
	"eventpos/internal/identity"
	"eventpos/internal/metrics"
	"eventpos/internal/model"
	"eventpos/internal/repository"
	"eventpos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTransactionService drives a sale through Pending → Completed and
// Pending/Completed → Cancelled. Each call is one unit of work.
type SalesTransactionService interface {
	Create(ctx context.Context, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.UpdateSaleRequest) (*dto.SaleResponse, error)
	Complete(ctx context.Context, id uuid.UUID, req dto.CompleteSaleRequest) (*dto.SaleResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, req dto.CancelSaleRequest) (*dto.SaleResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	Summary(ctx context.Context, registerID *uuid.UUID, date string) (*dto.SalesSummaryResponse, error)
}

type salesTransactionService struct {
	tx        repository.TxRunner
	sales     repository.SalesTransactionRepository
	products  repository.ProductRepository
	refs      repository.ReferenceRepository
	registers CashRegisterService
	ledger    InventoryLedger
	projector SalesSummaryProjector
	jobs      JobQueue
	clock     clock.Clock
	loc       *time.Location
	metrics   *metrics.Metrics
}

func NewSalesTransactionService(
	tx repository.TxRunner,
	sales repository.SalesTransactionRepository,
	products repository.ProductRepository,
	refs repository.ReferenceRepository,
	registers CashRegisterService,
	ledger InventoryLedger,
	projector SalesSummaryProjector,
	jobs JobQueue,
	clk clock.Clock,
	loc *time.Location,
	m *metrics.Metrics,
) SalesTransactionService {
	if loc == nil {
		loc = time.UTC
	}
	return &salesTransactionService{
		tx:        tx,
		sales:     sales,
		products:  products,
		refs:      refs,
		registers: registers,
		ledger:    ledger,
		projector: projector,
		jobs:      jobs,
		clock:     clk,
		loc:       loc,
		metrics:   m,
	}
}

// ── Create ───────────────────────────────────────────────────────────────────
//   1. Resolve lines: active product / combo, price copied at this moment
//   2. Check stock of every product the lines would move (checked, not reserved)
//   3. BEGIN TX: register open (share lock), next number for the business day,
//      insert header + details as Pending
//   4. COMMIT

func (s *salesTransactionService) Create(ctx context.Context, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	details, total, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, finish("create_sale", err)
	}

	regID := identity.ToInternal(req.CashRegisterID)
	var txn *model.SalesTransaction
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		reg, err := s.registers.RequireOpenTx(ctx, tx, regID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		day, _ := clock.BusinessDay(now, s.loc)
		seq, err := s.sales.NextSequenceTx(tx, regID, day)
		if err != nil {
			return err
		}

		txn = &model.SalesTransaction{
			CashRegisterID:    regID,
			TransactionNumber: transactionNumber(day, reg.RegisterNumber, seq),
			SalesStatus:       model.SalesStatusPending,
			TransactionDate:   now,
			TotalAmount:       total,
			CreatedBy:         identity.OptionalInternal(req.CreatedBy),
			Details:           details,
		}
		return s.sales.CreateTx(tx, txn)
	})
	if err != nil {
		return nil, finish("create_sale", err)
	}

	s.metrics.RecordSale(string(model.SalesStatusPending))
	log.Info().
		Int64("transaction_id", txn.ID).
		Int64("register_id", regID).
		Str("number", txn.TransactionNumber).
		Str("total", txn.TotalAmount.StringFixed(2)).
		Msg("sale created")
	return saleToResponse(txn), nil
}

// ── Update ───────────────────────────────────────────────────────────────────
// Replaces the whole detail set of a Pending sale.

func (s *salesTransactionService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateSaleRequest) (*dto.SaleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	details, total, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, finish("update_sale", err)
	}

	txnID := identity.ToInternal(id)
	var txn *model.SalesTransaction
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.lockTransaction(tx, txnID)
		if err != nil {
			return err
		}
		if txn.SalesStatus != model.SalesStatusPending {
			return invalidTransition(txn, "update")
		}
		if _, err := s.registers.RequireOpenTx(ctx, tx, txn.CashRegisterID); err != nil {
			return err
		}
		if err := s.sales.ReplaceDetailsTx(tx, txn.ID, details); err != nil {
			return err
		}
		txn.Details = details
		txn.TotalAmount = total
		return s.sales.UpdateTx(tx, txn)
	})
	if err != nil {
		return nil, finish("update_sale", err)
	}

	log.Info().Int64("transaction_id", txn.ID).Str("total", txn.TotalAmount.StringFixed(2)).Msg("sale updated")
	return saleToResponse(txn), nil
}

// ── Complete ─────────────────────────────────────────────────────────────────
//   1. Resolve processor and payment methods (active, reference when required)
//   2. BEGIN TX: lock sale, must be Pending, register open, Σ payments ≥ total
//   3. Post one Sale movement per stock line, insert payments, flip to Completed
//   4. COMMIT, then (async) low-stock alerts

func (s *salesTransactionService) Complete(ctx context.Context, id uuid.UUID, req dto.CompleteSaleRequest) (*dto.SaleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	defer s.metrics.TrackDBOperation("complete_sale")()

	processedBy := identity.ToInternal(req.ProcessedBy)
	if err := requireActiveUser(ctx, s.refs, processedBy); err != nil {
		return nil, finish("complete_sale", err)
	}
	payments, paid, err := s.resolvePayments(ctx, req.Payments, processedBy)
	if err != nil {
		return nil, finish("complete_sale", err)
	}

	txnID := identity.ToInternal(id)
	var txn *model.SalesTransaction
	var movements []model.InventoryMovement
	err = s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.lockTransaction(tx, txnID)
		if err != nil {
			return err
		}
		if txn.SalesStatus != model.SalesStatusPending {
			return invalidTransition(txn, "complete")
		}
		if _, err := s.registers.RequireOpenTx(ctx, tx, txn.CashRegisterID); err != nil {
			return err
		}
		if paid.LessThan(txn.TotalAmount) {
			return apierror.Validation(apierror.CodeInsufficientPayment, "payments do not cover the sale total").
				WithDetail("total_amount", txn.TotalAmount.StringFixed(2)).
				WithDetail("paid", paid.StringFixed(2))
		}

		lines, err := expandStockLines(tx, s.products, txn.Details)
		if err != nil {
			return err
		}
		for _, line := range lines {
			mov, err := s.ledger.PostMovementTx(ctx, tx, MovementInput{
				ProductID:          line.productID,
				MovementTypeID:     model.MovementTypeSale,
				Quantity:           -line.quantity,
				Justification:      "Sale " + txn.TransactionNumber,
				SalesTransactionID: &txn.ID,
				ActorID:            &processedBy,
			})
			if err != nil {
				return err
			}
			movements = append(movements, *mov)
		}

		now := s.clock.Now()
		for i := range payments {
			payments[i].SalesTransactionID = txn.ID
			payments[i].ProcessedAt = now
		}
		if err := s.sales.CreatePaymentsTx(tx, payments); err != nil {
			return err
		}

		txn.Payments = payments
		txn.SalesStatus = model.SalesStatusCompleted
		txn.CompletedAt = &now
		return s.sales.UpdateTx(tx, txn)
	})
	if err != nil {
		return nil, finish("complete_sale", err)
	}

	s.metrics.RecordSale(string(model.SalesStatusCompleted))
	for range movements {
		s.metrics.RecordMovement(model.MovementTypeName(model.MovementTypeSale))
	}
	log.Info().
		Int64("transaction_id", txn.ID).
		Str("number", txn.TransactionNumber).
		Str("total", txn.TotalAmount.StringFixed(2)).
		Str("paid", paid.StringFixed(2)).
		Int("movements", len(movements)).
		Msg("sale completed")

	s.enqueueStockAlerts(ctx, txn, movements)
	return saleToResponse(txn), nil
}

// ── Cancel ───────────────────────────────────────────────────────────────────
// Completed sales give their stock back through the ledger first. Cancelling
// a Cancelled sale succeeds and changes nothing.

func (s *salesTransactionService) Cancel(ctx context.Context, id uuid.UUID, req dto.CancelSaleRequest) (*dto.SaleResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apierror.ValidationFields(map[string]string{"reason": "required"})
	}

	txnID := identity.ToInternal(id)
	actorID := identity.OptionalInternal(req.CancelledBy)
	var txn *model.SalesTransaction
	var prior model.SalesStatus
	var reverted []model.InventoryMovement
	err := s.tx.Run(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.lockTransaction(tx, txnID)
		if err != nil {
			return err
		}
		prior = txn.SalesStatus
		switch prior {
		case model.SalesStatusCancelled:
			return nil
		case model.SalesStatusCompleted:
			reverted, err = s.ledger.RevertTx(ctx, tx, txn, actorID)
			if err != nil {
				return err
			}
		}

		now := s.clock.Now()
		reason := req.Reason
		txn.SalesStatus = model.SalesStatusCancelled
		txn.CancellationReason = &reason
		txn.CancelledAt = &now
		return s.sales.UpdateTx(tx, txn)
	})
	if err != nil {
		return nil, finish("cancel_sale", err)
	}

	if prior == model.SalesStatusCancelled {
		log.Debug().Int64("transaction_id", txn.ID).Msg("sale already cancelled")
		return saleToResponse(txn), nil
	}

	s.metrics.RecordSale(string(model.SalesStatusCancelled))
	for range reverted {
		s.metrics.RecordMovement(model.MovementTypeName(model.MovementTypeReturn))
	}
	log.Info().
		Int64("transaction_id", txn.ID).
		Str("from", string(prior)).
		Int("reverted_movements", len(reverted)).
		Msg("sale cancelled")
	return saleToResponse(txn), nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *salesTransactionService) Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	txnID := identity.ToInternal(id)
	txn, err := s.sales.FindByID(ctx, txnID)
	if err != nil {
		return nil, finish("get_sale", lookupErr(err, apierror.CodeTransactionNotFound, "sales transaction", txnID, identity.FamilySalesTransaction))
	}
	return saleToResponse(txn), nil
}

// List returns a page of sales, newest first.
func (s *salesTransactionService) List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if err := validateRequest(filter); err != nil {
		return nil, err
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	q := repository.SalesQuery{
		CashRegisterID: identity.OptionalInternal(filter.CashRegisterID),
		Page:           page,
		Limit:          limit,
	}
	if filter.Date != "" {
		day, err := s.parseDay(filter.Date)
		if err != nil {
			return nil, err
		}
		from, to := clock.BusinessDay(day, s.loc)
		q.From, q.To = &from, &to
	}
	if filter.Status != "" {
		st := model.SalesStatus(filter.Status)
		q.Status = &st
	}

	txns, total, err := s.sales.List(ctx, q)
	if err != nil {
		return nil, finish("list_sales", err)
	}
	data := make([]dto.SaleResponse, 0, len(txns))
	for i := range txns {
		data = append(data, *saleToResponse(&txns[i]))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// Summary projects one business day (today when date is empty).
func (s *salesTransactionService) Summary(ctx context.Context, registerID *uuid.UUID, date string) (*dto.SalesSummaryResponse, error) {
	day := s.clock.Now()
	if date != "" {
		var err error
		if day, err = s.parseDay(date); err != nil {
			return nil, err
		}
	}
	regID := identity.OptionalInternal(registerID)
	sum, err := s.projector.Summarize(ctx, regID, day)
	if err != nil {
		return nil, finish("sales_summary", err)
	}
	return summaryToResponse(sum, regID), nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// transactionNumber renders YYYYMMDD-RR-NNNN.
func transactionNumber(day time.Time, registerNumber, seq int) string {
	return fmt.Sprintf("%s-%02d-%04d", day.Format("20060102"), registerNumber, seq)
}

func invalidTransition(txn *model.SalesTransaction, action string) error {
	return apierror.InvalidState(apierror.CodeInvalidState,
		fmt.Sprintf("cannot %s a %s sale", action, strings.ToLower(string(txn.SalesStatus)))).
		WithDetail("transaction_id", identity.ToExternal(txn.ID, identity.FamilySalesTransaction)).
		WithDetail("status", string(txn.SalesStatus))
}

func (s *salesTransactionService) lockTransaction(tx *gorm.DB, id int64) (*model.SalesTransaction, error) {
	txn, err := s.sales.FindByIDForUpdateTx(tx, id)
	if err != nil {
		return nil, lookupErr(err, apierror.CodeTransactionNotFound, "sales transaction", id, identity.FamilySalesTransaction)
	}
	return txn, nil
}

func (s *salesTransactionService) parseDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return time.Time{}, apierror.ValidationFields(map[string]string{"date": "datetime"})
	}
	return day, nil
}

// resolveLines prices every item and checks stock for the products the lines
// would move once completed. Quantities of repeated products add up.
func (s *salesTransactionService) resolveLines(ctx context.Context, items []dto.SaleItemRequest) ([]model.TransactionDetail, decimal.Decimal, error) {
	details := make([]model.TransactionDetail, 0, len(items))
	total := decimal.Zero
	demand := make(map[int64]int)
	var order []int64
	need := func(productID int64, qty int) {
		if _, seen := demand[productID]; !seen {
			order = append(order, productID)
		}
		demand[productID] += qty
	}

	for i, item := range items {
		if (item.ProductID == nil) == (item.ComboID == nil) {
			return nil, decimal.Zero, apierror.ValidationFields(map[string]string{
				fmt.Sprintf("items[%d]", i): "product_id_xor_combo_id",
			})
		}
		qty := decimal.NewFromInt(int64(item.Quantity))

		if item.ProductID != nil {
			pid := identity.ToInternal(*item.ProductID)
			p, err := s.products.FindByID(ctx, pid)
			if err != nil {
				return nil, decimal.Zero, lookupErr(err, apierror.CodeProductNotFound, "product", pid, identity.FamilyProduct)
			}
			if !p.IsActive {
				return nil, decimal.Zero, inactiveProduct(p)
			}
			lineTotal := p.UnitPrice.Mul(qty)
			details = append(details, model.TransactionDetail{
				ProductID:   &p.ID,
				Quantity:    item.Quantity,
				UnitPrice:   p.UnitPrice,
				TotalAmount: lineTotal,
			})
			total = total.Add(lineTotal)
			need(p.ID, item.Quantity)
			continue
		}

		cid := identity.ToInternal(*item.ComboID)
		combo, err := s.products.FindComboByID(ctx, cid)
		if err != nil {
			return nil, decimal.Zero, lookupErr(err, apierror.CodeComboNotFound, "combo", cid, identity.FamilyCombo)
		}
		if !combo.IsActive {
			return nil, decimal.Zero, apierror.Validation(apierror.CodeInactiveProduct, fmt.Sprintf("combo %s is inactive", combo.Name)).
				WithDetail("combo_id", identity.ToExternal(combo.ID, identity.FamilyCombo))
		}
		lineTotal := combo.ComboPrice.Mul(qty)
		details = append(details, model.TransactionDetail{
			ComboID:     &combo.ID,
			Quantity:    item.Quantity,
			UnitPrice:   combo.ComboPrice,
			TotalAmount: lineTotal,
			IsCombo:     true,
		})
		total = total.Add(lineTotal)
		for _, ci := range combo.Items {
			need(ci.ProductID, ci.Quantity*item.Quantity)
		}
	}

	if err := s.checkStock(ctx, order, demand); err != nil {
		return nil, decimal.Zero, err
	}
	return details, total, nil
}

func (s *salesTransactionService) checkStock(ctx context.Context, order []int64, demand map[int64]int) error {
	products, err := s.products.FindByIDs(ctx, order)
	if err != nil {
		return err
	}
	byID := make(map[int64]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, pid := range order {
		p, ok := byID[pid]
		if !ok {
			return apierror.NotFound(apierror.CodeProductNotFound, "product", identity.ToExternal(pid, identity.FamilyProduct))
		}
		if !p.IsActive {
			return inactiveProduct(p)
		}
		if p.CurrentQuantity < demand[pid] {
			return apierror.Validation(apierror.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", p.Name)).
				WithDetail("product_id", identity.ToExternal(p.ID, identity.FamilyProduct)).
				WithDetail("requested", demand[pid]).
				WithDetail("available", p.CurrentQuantity)
		}
	}
	return nil
}

func inactiveProduct(p *model.Product) error {
	return apierror.Validation(apierror.CodeInactiveProduct, fmt.Sprintf("product %s is inactive", p.Name)).
		WithDetail("product_id", identity.ToExternal(p.ID, identity.FamilyProduct))
}

func (s *salesTransactionService) resolvePayments(ctx context.Context, reqs []dto.PaymentRequest, processedBy int64) ([]model.TransactionPayment, decimal.Decimal, error) {
	payments := make([]model.TransactionPayment, 0, len(reqs))
	paid := decimal.Zero
	for i, pr := range reqs {
		if !pr.Amount.IsPositive() {
			return nil, decimal.Zero, apierror.ValidationFields(map[string]string{fmt.Sprintf("payments[%d].amount", i): "gt"})
		}
		methodID := identity.ToInternal(pr.PaymentMethodID)
		pm, err := s.refs.FindPaymentMethod(ctx, methodID)
		if err != nil {
			return nil, decimal.Zero, lookupErr(err, apierror.CodePaymentMethodNotFound, "payment method", methodID, identity.FamilyPaymentMethod)
		}
		if !pm.IsActive {
			return nil, decimal.Zero, apierror.Validation(apierror.CodeInvalidRequest, fmt.Sprintf("payment method %s is inactive", pm.Name)).
				WithDetail("payment_method_id", pr.PaymentMethodID)
		}
		var ref *string
		if pr.Reference != nil {
			if trimmed := strings.TrimSpace(*pr.Reference); trimmed != "" {
				ref = &trimmed
			}
		}
		if pm.RequiresReference && ref == nil {
			return nil, decimal.Zero, apierror.Validation(apierror.CodeMissingReference,
				fmt.Sprintf("payment method %s requires a reference", pm.Name)).
				WithDetail("payment_method_id", pr.PaymentMethodID)
		}
		payments = append(payments, model.TransactionPayment{
			PaymentMethodID: pm.ID,
			Amount:          pr.Amount,
			Reference:       ref,
			ProcessedBy:     processedBy,
		})
		paid = paid.Add(pr.Amount)
	}
	return payments, paid, nil
}

// enqueueStockAlerts fires one alert per product whose posting crossed its
// alert threshold. Best-effort: the sale is already committed.
func (s *salesTransactionService) enqueueStockAlerts(ctx context.Context, txn *model.SalesTransaction, movements []model.InventoryMovement) {
	if s.jobs == nil || len(movements) == 0 {
		return
	}
	ids := make([]int64, 0, len(movements))
	for _, m := range movements {
		ids = append(ids, m.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int64("transaction_id", txn.ID).Msg("stock alert lookup failed")
		return
	}
	byID := make(map[int64]*model.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	alerted := make(map[int64]bool)
	for _, m := range movements {
		p, ok := byID[m.ProductID]
		if !ok || alerted[p.ID] || p.AlertQuantity <= 0 {
			continue
		}
		if m.PreviousQuantity > p.AlertQuantity && m.NewQuantity <= p.AlertQuantity {
			alerted[p.ID] = true
			if err := s.jobs.EnqueueStockAlert(ctx, worker.StockAlertPayload{
				ProductID:         p.ID,
				ProductCode:       p.Code,
				ProductName:       p.Name,
				CurrentQuantity:   m.NewQuantity,
				AlertQuantity:     p.AlertQuantity,
				TransactionNumber: txn.TransactionNumber,
			}); err != nil {
				log.Warn().Err(err).Int64("product_id", p.ID).Msg("stock alert enqueue failed")
			}
		}
	}
}

package service_test

import (
	"context"
	"testing"
	"time"

	"eventpos/internal/clock"
	"eventpos/internal/dto"
	"eventpos/internal/identity"
	"eventpos/internal/metrics"
	"eventpos/internal/model"
	"eventpos/internal/service"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// harness wires every engine service over one memStore.
type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *memStore
	clock   *clock.Fixed
	jobs    *memJobs
	metrics *metrics.Metrics

	ledger    service.InventoryLedger
	registers service.CashRegisterService
	sales     service.SalesTransactionService
	projector service.SalesSummaryProjector

	// seeded ids
	activity   int64
	operator   int64
	inactive   int64
	cash       int64
	card       int64
	sinpe      int64
	water      int64 // $10.00, stock 100, alert 5
	chips      int64 // $5.50, stock 3, alert 2
	snackCombo int64 // $14.00 = 1 water + 2 chips
	register   int64 // number 1, closed
}

type harnessOpt func(*harnessConfig)

type harnessConfig struct {
	strictStock bool
	loc         *time.Location
	now         time.Time
}

func withLenientStock() harnessOpt { return func(c *harnessConfig) { c.strictStock = false } }

func withLocation(loc *time.Location, now time.Time) harnessOpt {
	return func(c *harnessConfig) { c.loc, c.now = loc, now }
}

var baseTime = time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, opts ...harnessOpt) *harness {
	t.Helper()
	cfg := harnessConfig{strictStock: true, loc: time.UTC, now: baseTime}
	for _, o := range opts {
		o(&cfg)
	}

	store := newMemStore()
	h := &harness{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		clock:   clock.NewFixed(cfg.now),
		jobs:    &memJobs{},
		metrics: metrics.New("test", prometheus.NewRegistry()),
	}

	tx := memTx{store}
	products := memProducts{store}
	sales := memSales{store}
	refs := memRefs{store}

	h.projector = service.NewSalesSummaryProjector(memSummary{store}, cfg.loc)
	h.ledger = service.NewInventoryLedger(tx, products, memMovements{store}, h.clock, cfg.strictStock, h.metrics)
	h.registers = service.NewCashRegisterService(tx, memRegisters{store}, sales, refs, h.projector, h.jobs, h.clock, h.metrics)
	h.sales = service.NewSalesTransactionService(tx, sales, products, refs, h.registers, h.ledger, h.projector, h.jobs, h.clock, cfg.loc, h.metrics)

	h.seed()
	return h
}

func (h *harness) seed() {
	d := h.store.data

	h.activity = d.id()
	d.activities[h.activity] = model.Activity{ID: h.activity, Name: "Spring Fair", IsActive: true}

	h.operator = d.id()
	d.users[h.operator] = model.User{ID: h.operator, Username: "ana", FullName: "Ana Mora", IsActive: true}
	h.inactive = d.id()
	d.users[h.inactive] = model.User{ID: h.inactive, Username: "old", FullName: "Former Staff", IsActive: false}

	h.cash = d.id()
	d.paymentMethods[h.cash] = model.PaymentMethod{ID: h.cash, Name: model.PaymentMethodCash, IsActive: true}
	h.card = d.id()
	d.paymentMethods[h.card] = model.PaymentMethod{ID: h.card, Name: model.PaymentMethodCard, RequiresReference: true, IsActive: true}
	h.sinpe = d.id()
	d.paymentMethods[h.sinpe] = model.PaymentMethod{ID: h.sinpe, Name: model.PaymentMethodSINPE, RequiresReference: true, IsActive: true}

	h.water = h.addProduct("W-01", "Water", "10.00", 100, 5)
	h.chips = h.addProduct("C-01", "Chips", "5.50", 3, 2)

	combo := &model.Combo{
		ActivityID: h.activity,
		Name:       "Snack pack",
		ComboPrice: decimal.RequireFromString("14.00"),
		IsActive:   true,
		Items: []model.ComboItem{
			{ProductID: h.water, Quantity: 1},
			{ProductID: h.chips, Quantity: 2},
		},
	}
	require.NoError(h.t, memProducts{h.store}.CreateCombo(h.ctx, combo))
	h.snackCombo = combo.ID

	reg := &model.CashRegister{ActivityID: h.activity, RegisterNumber: 1, Name: "Main gate"}
	require.NoError(h.t, memRegisters{h.store}.Create(h.ctx, reg))
	h.register = reg.ID
}

func (h *harness) addProduct(code, name, price string, stock, alert int) int64 {
	p := &model.Product{
		ActivityID:      h.activity,
		Code:            code,
		Name:            name,
		UnitPrice:       decimal.RequireFromString(price),
		InitialQuantity: stock,
		CurrentQuantity: stock,
		AlertQuantity:   alert,
		IsActive:        true,
	}
	require.NoError(h.t, memProducts{h.store}.Create(h.ctx, p))
	return p.ID
}

// ── External ids ─────────────────────────────────────────────────────────────

func (h *harness) registerID() uuid.UUID { return identity.ToExternal(h.register, identity.FamilyCashRegister) }
func (h *harness) userID(id int64) uuid.UUID {
	return identity.ToExternal(id, identity.FamilyUser)
}
func (h *harness) productID(id int64) *uuid.UUID {
	u := identity.ToExternal(id, identity.FamilyProduct)
	return &u
}
func (h *harness) comboID(id int64) *uuid.UUID {
	u := identity.ToExternal(id, identity.FamilyCombo)
	return &u
}
func (h *harness) methodID(id int64) uuid.UUID {
	return identity.ToExternal(id, identity.FamilyPaymentMethod)
}

// ── Shortcuts ────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (h *harness) product(id int64) model.Product { return h.store.data.products[id] }

func (h *harness) openRegister() {
	h.t.Helper()
	_, err := h.registers.Open(h.ctx, h.registerID(), dto.OpenCashRegisterRequest{OperatorUserID: h.userID(h.operator)})
	require.NoError(h.t, err)
}

func (h *harness) createSale(items ...dto.SaleItemRequest) *dto.SaleResponse {
	h.t.Helper()
	sale, err := h.sales.Create(h.ctx, dto.CreateSaleRequest{CashRegisterID: h.registerID(), Items: items})
	require.NoError(h.t, err)
	return sale
}

func (h *harness) waterLine(qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: h.productID(h.water), Quantity: qty}
}

func (h *harness) cashPayment(amount string) dto.CompleteSaleRequest {
	return dto.CompleteSaleRequest{
		Payments:    []dto.PaymentRequest{{PaymentMethodID: h.methodID(h.cash), Amount: dec(amount)}},
		ProcessedBy: h.userID(h.operator),
	}
}

func (h *harness) complete(id uuid.UUID, req dto.CompleteSaleRequest) *dto.SaleResponse {
	h.t.Helper()
	sale, err := h.sales.Complete(h.ctx, id, req)
	require.NoError(h.t, err)
	return sale
}

func (h *harness) closeRegister(declared string) *dto.ClosureResponse {
	h.t.Helper()
	closure, err := h.registers.Close(h.ctx, h.registerID(), dto.CloseCashRegisterRequest{
		CashDeclared: dec(declared),
		ClosedBy:     h.userID(h.operator),
	})
	require.NoError(h.t, err)
	return closure
}

func strPtr(s string) *string { return &s }

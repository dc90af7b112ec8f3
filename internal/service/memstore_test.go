package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"eventpos/internal/model"
	"eventpos/internal/repository"
	"eventpos/internal/worker"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ──────────────────────────────────────────────────────────
// memData is the whole database. memTx snapshots it before each unit of work
// and restores the snapshot when the work fails, so rollback is observable.

type memData struct {
	nextID int64

	activities     map[int64]model.Activity
	users          map[int64]model.User
	paymentMethods map[int64]model.PaymentMethod
	products       map[int64]model.Product
	combos         map[int64]model.Combo
	registers      map[int64]model.CashRegister
	closures       []model.CashRegisterClosure
	sales          map[int64]model.SalesTransaction
	movements      []model.InventoryMovement
	sequences      map[string]int
}

func newMemData() *memData {
	return &memData{
		activities:     make(map[int64]model.Activity),
		users:          make(map[int64]model.User),
		paymentMethods: make(map[int64]model.PaymentMethod),
		products:       make(map[int64]model.Product),
		combos:         make(map[int64]model.Combo),
		registers:      make(map[int64]model.CashRegister),
		sales:          make(map[int64]model.SalesTransaction),
		sequences:      make(map[string]int),
	}
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *memData) clone() *memData {
	c := newMemData()
	c.nextID = d.nextID
	for k, v := range d.activities {
		c.activities[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.paymentMethods {
		c.paymentMethods[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.combos {
		v.Items = append([]model.ComboItem(nil), v.Items...)
		c.combos[k] = v
	}
	for k, v := range d.registers {
		c.registers[k] = v
	}
	c.closures = append(c.closures, d.closures...)
	for k, v := range d.sales {
		c.sales[k] = copySale(v)
	}
	c.movements = append(c.movements, d.movements...)
	for k, v := range d.sequences {
		c.sequences[k] = v
	}
	return c
}

func copySale(t model.SalesTransaction) model.SalesTransaction {
	t.Details = append([]model.TransactionDetail(nil), t.Details...)
	t.Payments = append([]model.TransactionPayment(nil), t.Payments...)
	return t
}

type memStore struct {
	mu    sync.Mutex
	data  *memData
	fails map[string]error
}

func newMemStore() *memStore {
	return &memStore{data: newMemData(), fails: make(map[string]error)}
}

// failOn makes the next call of the named repository method return err.
func (s *memStore) failOn(method string, err error) { s.fails[method] = err }

func (s *memStore) fail(method string) error {
	if err, ok := s.fails[method]; ok {
		delete(s.fails, method)
		return err
	}
	return nil
}

// ── TxRunner ─────────────────────────────────────────────────────────────────

type memTx struct{ s *memStore }

func (r memTx) Run(_ context.Context, fn func(tx *gorm.DB) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	snapshot := r.s.data.clone()
	if err := fn(nil); err != nil {
		r.s.data = snapshot
		return err
	}
	return nil
}

// ── ProductRepository ────────────────────────────────────────────────────────

type memProducts struct{ s *memStore }

func (r memProducts) Create(_ context.Context, p *model.Product) error {
	p.ID = r.s.data.id()
	r.s.data.products[p.ID] = *p
	return nil
}

func (r memProducts) FindByID(_ context.Context, id int64) (*model.Product, error) {
	return r.FindByIDTx(nil, id)
}

func (r memProducts) FindByIDs(_ context.Context, ids []int64) ([]model.Product, error) {
	out := []model.Product{}
	seen := make(map[int64]bool)
	for _, id := range ids {
		if p, ok := r.s.data.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memProducts) FindComboByIDTx(_ *gorm.DB, id int64) (*model.Combo, error) {
	return r.FindComboByID(context.Background(), id)
}

func (r memProducts) FindComboByID(_ context.Context, id int64) (*model.Combo, error) {
	c, ok := r.s.data.combos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c.Items = append([]model.ComboItem(nil), c.Items...)
	for i := range c.Items {
		if p, ok := r.s.data.products[c.Items[i].ProductID]; ok {
			c.Items[i].Product = &p
		}
	}
	return &c, nil
}

func (r memProducts) CreateCombo(_ context.Context, c *model.Combo) error {
	c.ID = r.s.data.id()
	for i := range c.Items {
		c.Items[i].ID = r.s.data.id()
		c.Items[i].ComboID = c.ID
		c.Items[i].Product = nil
	}
	stored := *c
	stored.Items = append([]model.ComboItem(nil), c.Items...)
	r.s.data.combos[c.ID] = stored
	return nil
}

func (r memProducts) FindByIDTx(_ *gorm.DB, id int64) (*model.Product, error) {
	p, ok := r.s.data.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProducts) ApplyDeltaTx(_ *gorm.DB, id int64, delta int, guard bool) (int, bool, error) {
	if err := r.s.fail("ApplyDeltaTx"); err != nil {
		return 0, false, err
	}
	p, ok := r.s.data.products[id]
	if !ok {
		return 0, false, nil
	}
	if guard && p.CurrentQuantity+delta < 0 {
		return 0, false, nil
	}
	p.CurrentQuantity += delta
	r.s.data.products[id] = p
	return p.CurrentQuantity, true, nil
}

// ── MovementRepository ───────────────────────────────────────────────────────

type memMovements struct{ s *memStore }

func (r memMovements) CreateTx(_ *gorm.DB, m *model.InventoryMovement) error {
	if err := r.s.fail("MovementCreateTx"); err != nil {
		return err
	}
	m.ID = r.s.data.id()
	r.s.data.movements = append(r.s.data.movements, *m)
	return nil
}

func (r memMovements) List(_ context.Context, q repository.MovementQuery) ([]model.InventoryMovement, int64, error) {
	var all []model.InventoryMovement
	for _, m := range r.s.data.movements {
		if q.ProductID != nil && m.ProductID != *q.ProductID {
			continue
		}
		if q.SalesTransactionID != nil && (m.SalesTransactionID == nil || *m.SalesTransactionID != *q.SalesTransactionID) {
			continue
		}
		if q.MovementTypeID != nil && m.MovementTypeID != *q.MovementTypeID {
			continue
		}
		all = append(all, m)
	}
	return paginate(all, q.Page, q.Limit), int64(len(all)), nil
}

func (r memMovements) ListBySaleTx(_ *gorm.DB, salesTransactionID, movementTypeID int64) ([]model.InventoryMovement, error) {
	var out []model.InventoryMovement
	for _, m := range r.s.data.movements {
		if m.SalesTransactionID != nil && *m.SalesTransactionID == salesTransactionID && m.MovementTypeID == movementTypeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMovements) ListByProduct(_ context.Context, productID int64) ([]model.InventoryMovement, error) {
	var out []model.InventoryMovement
	for _, m := range r.s.data.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ── CashRegisterRepository ───────────────────────────────────────────────────

type memRegisters struct{ s *memStore }

func (r memRegisters) Create(_ context.Context, reg *model.CashRegister) error {
	reg.ID = r.s.data.id()
	r.s.data.registers[reg.ID] = *reg
	return nil
}

func (r memRegisters) FindByID(_ context.Context, id int64) (*model.CashRegister, error) {
	reg, ok := r.s.data.registers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &reg, nil
}

func (r memRegisters) NumberTaken(_ context.Context, activityID int64, number int, excludeID int64) (bool, error) {
	for _, reg := range r.s.data.registers {
		if reg.ActivityID == activityID && reg.RegisterNumber == number && reg.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r memRegisters) ListOpen(_ context.Context, activityID *int64) ([]model.CashRegister, error) {
	var out []model.CashRegister
	for _, reg := range r.s.data.registers {
		if reg.IsOpen && (activityID == nil || reg.ActivityID == *activityID) {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisterNumber < out[j].RegisterNumber })
	return out, nil
}

func (r memRegisters) Delete(_ context.Context, id int64) error {
	delete(r.s.data.registers, id)
	return nil
}

func (r memRegisters) FindClosureByID(_ context.Context, id int64) (*model.CashRegisterClosure, error) {
	for _, c := range r.s.data.closures {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memRegisters) FindLastClosure(_ context.Context, registerID int64) (*model.CashRegisterClosure, error) {
	var last *model.CashRegisterClosure
	for i := range r.s.data.closures {
		c := r.s.data.closures[i]
		if c.CashRegisterID == registerID && (last == nil || !c.ClosingDate.Before(last.ClosingDate)) {
			last = &c
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (r memRegisters) FindByIDForUpdateTx(_ *gorm.DB, id int64) (*model.CashRegister, error) {
	return r.FindByID(context.Background(), id)
}

func (r memRegisters) FindByIDForShareTx(_ *gorm.DB, id int64) (*model.CashRegister, error) {
	return r.FindByID(context.Background(), id)
}

func (r memRegisters) UpdateTx(_ *gorm.DB, reg *model.CashRegister) error {
	r.s.data.registers[reg.ID] = *reg
	return nil
}

func (r memRegisters) CreateClosureTx(_ *gorm.DB, c *model.CashRegisterClosure) error {
	if err := r.s.fail("CreateClosureTx"); err != nil {
		return err
	}
	c.ID = r.s.data.id()
	r.s.data.closures = append(r.s.data.closures, *c)
	return nil
}

// ── SalesTransactionRepository ───────────────────────────────────────────────

type memSales struct{ s *memStore }

func (r memSales) FindByID(_ context.Context, id int64) (*model.SalesTransaction, error) {
	t, ok := r.s.data.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	t = copySale(t)
	return &t, nil
}

func (r memSales) List(_ context.Context, q repository.SalesQuery) ([]model.SalesTransaction, int64, error) {
	var all []model.SalesTransaction
	for _, t := range r.s.data.sales {
		if q.CashRegisterID != nil && t.CashRegisterID != *q.CashRegisterID {
			continue
		}
		if q.From != nil && t.TransactionDate.Before(*q.From) {
			continue
		}
		if q.To != nil && !t.TransactionDate.Before(*q.To) {
			continue
		}
		if q.Status != nil && t.SalesStatus != *q.Status {
			continue
		}
		all = append(all, copySale(t))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].TransactionDate.Equal(all[j].TransactionDate) {
			return all[i].TransactionDate.After(all[j].TransactionDate)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, q.Page, q.Limit), int64(len(all)), nil
}

func (r memSales) CountByRegister(_ context.Context, registerID int64) (int64, error) {
	var n int64
	for _, t := range r.s.data.sales {
		if t.CashRegisterID == registerID {
			n++
		}
	}
	return n, nil
}

func (r memSales) CreateTx(_ *gorm.DB, t *model.SalesTransaction) error {
	for _, other := range r.s.data.sales {
		if other.TransactionNumber == t.TransactionNumber {
			return fmt.Errorf("duplicate transaction number %s", t.TransactionNumber)
		}
	}
	t.ID = r.s.data.id()
	for i := range t.Details {
		t.Details[i].ID = r.s.data.id()
		t.Details[i].SalesTransactionID = t.ID
	}
	r.s.data.sales[t.ID] = copySale(*t)
	return nil
}

func (r memSales) FindByIDForUpdateTx(_ *gorm.DB, id int64) (*model.SalesTransaction, error) {
	return r.FindByID(context.Background(), id)
}

func (r memSales) UpdateTx(_ *gorm.DB, t *model.SalesTransaction) error {
	if err := r.s.fail("SalesUpdateTx"); err != nil {
		return err
	}
	stored, ok := r.s.data.sales[t.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	header := copySale(*t)
	header.Details = stored.Details
	header.Payments = stored.Payments
	r.s.data.sales[t.ID] = header
	return nil
}

func (r memSales) ReplaceDetailsTx(_ *gorm.DB, transactionID int64, details []model.TransactionDetail) error {
	stored := r.s.data.sales[transactionID]
	for i := range details {
		details[i].ID = r.s.data.id()
		details[i].SalesTransactionID = transactionID
	}
	stored.Details = append([]model.TransactionDetail(nil), details...)
	r.s.data.sales[transactionID] = stored
	return nil
}

func (r memSales) CreatePaymentsTx(_ *gorm.DB, payments []model.TransactionPayment) error {
	if err := r.s.fail("CreatePaymentsTx"); err != nil {
		return err
	}
	for i := range payments {
		payments[i].ID = r.s.data.id()
		stored := r.s.data.sales[payments[i].SalesTransactionID]
		stored.Payments = append(stored.Payments, payments[i])
		r.s.data.sales[stored.ID] = stored
	}
	return nil
}

func (r memSales) NextSequenceTx(_ *gorm.DB, registerID int64, businessDay time.Time) (int, error) {
	key := fmt.Sprintf("%d/%s", registerID, businessDay.Format("2006-01-02"))
	r.s.data.sequences[key]++
	return r.s.data.sequences[key], nil
}

// ── ReferenceRepository ──────────────────────────────────────────────────────

type memRefs struct{ s *memStore }

func (r memRefs) FindActivity(_ context.Context, id int64) (*model.Activity, error) {
	a, ok := r.s.data.activities[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (r memRefs) FindUser(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r memRefs) FindPaymentMethod(_ context.Context, id int64) (*model.PaymentMethod, error) {
	pm, ok := r.s.data.paymentMethods[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pm, nil
}

func (r memRefs) ListPaymentMethods(_ context.Context) ([]model.PaymentMethod, error) {
	var out []model.PaymentMethod
	for _, pm := range r.s.data.paymentMethods {
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── SummaryRepository ────────────────────────────────────────────────────────

type memSummary struct{ s *memStore }

func inWindow(t time.Time, w repository.Window) bool {
	if t.Before(w.From) {
		return false
	}
	return w.To.IsZero() || t.Before(w.To)
}

func (r memSummary) matching(registerID *int64, w repository.Window) []model.SalesTransaction {
	var out []model.SalesTransaction
	for _, t := range r.s.data.sales {
		if registerID != nil && t.CashRegisterID != *registerID {
			continue
		}
		at := t.TransactionDate
		if w.ByCompletion {
			if t.CompletedAt == nil {
				continue
			}
			at = *t.CompletedAt
		}
		if inWindow(at, w) {
			out = append(out, t)
		}
	}
	return out
}

func (r memSummary) CountByStatus(_ context.Context, registerID *int64, w repository.Window) ([]repository.StatusCount, error) {
	return r.CountByStatusTx(nil, registerID, w)
}

func (r memSummary) ItemsSold(_ context.Context, registerID *int64, w repository.Window) (int, error) {
	return r.ItemsSoldTx(nil, registerID, w)
}

func (r memSummary) CountByStatusTx(_ *gorm.DB, registerID *int64, w repository.Window) ([]repository.StatusCount, error) {
	byStatus := make(map[model.SalesStatus]*repository.StatusCount)
	for _, t := range r.matching(registerID, w) {
		sc, ok := byStatus[t.SalesStatus]
		if !ok {
			sc = &repository.StatusCount{SalesStatus: t.SalesStatus, Amount: decimal.Zero}
			byStatus[t.SalesStatus] = sc
		}
		sc.Count++
		sc.Amount = sc.Amount.Add(t.TotalAmount)
	}
	var out []repository.StatusCount
	for _, sc := range byStatus {
		out = append(out, *sc)
	}
	return out, nil
}

func (r memSummary) ItemsSoldTx(_ *gorm.DB, registerID *int64, w repository.Window) (int, error) {
	items := 0
	for _, t := range r.matching(registerID, w) {
		if t.SalesStatus != model.SalesStatusCompleted {
			continue
		}
		for _, d := range t.Details {
			items += d.Quantity
		}
	}
	return items, nil
}

func (r memSummary) PaymentsByMethodTx(_ *gorm.DB, registerID int64, w repository.Window) ([]repository.MethodTotal, error) {
	byName := make(map[string]decimal.Decimal)
	for _, t := range r.matching(&registerID, w) {
		if t.SalesStatus != model.SalesStatusCompleted {
			continue
		}
		for _, p := range t.Payments {
			name := r.s.data.paymentMethods[p.PaymentMethodID].Name
			byName[name] = byName[name].Add(p.Amount)
		}
	}
	var out []repository.MethodTotal
	for name, amount := range byName {
		out = append(out, repository.MethodTotal{Name: name, Amount: amount})
	}
	return out, nil
}

// ── JobQueue ─────────────────────────────────────────────────────────────────

type memJobs struct {
	stockAlerts    []worker.StockAlertPayload
	closureReports []worker.ClosureReportPayload
	err            error
}

func (q *memJobs) EnqueueStockAlert(_ context.Context, p worker.StockAlertPayload) error {
	if q.err != nil {
		return q.err
	}
	q.stockAlerts = append(q.stockAlerts, p)
	return nil
}

func (q *memJobs) EnqueueClosureReport(_ context.Context, p worker.ClosureReportPayload) error {
	if q.err != nil {
		return q.err
	}
	q.closureReports = append(q.closureReports, p)
	return nil
}

func paginate[T any](all []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

var errInjected = errors.New("injected failure")

var (
	_ repository.TxRunner                   = memTx{}
	_ repository.ProductRepository          = memProducts{}
	_ repository.MovementRepository         = memMovements{}
	_ repository.CashRegisterRepository     = memRegisters{}
	_ repository.SalesTransactionRepository = memSales{}
	_ repository.ReferenceRepository        = memRefs{}
	_ repository.SummaryRepository          = memSummary{}
)

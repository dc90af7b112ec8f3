package repository

import (
	"context"
	"time"

	"eventpos/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Window bounds TransactionDate as [From, To). A zero To leaves it open-ended.
// ByCompletion bounds CompletedAt instead, which places a sale in the session
// that took its payment rather than the one that created it.
type Window struct {
	From         time.Time
	To           time.Time
	ByCompletion bool
}

// apply filters on the sales_transactions date column, qualified by prefix.
func (w Window) apply(q *gorm.DB, prefix string) *gorm.DB {
	column := prefix + "transaction_date"
	if w.ByCompletion {
		column = prefix + "completed_at"
	}
	q = q.Where(column+" >= ?", w.From)
	if !w.To.IsZero() {
		q = q.Where(column+" < ?", w.To)
	}
	return q
}

// StatusCount is one row of a per-status aggregate.
type StatusCount struct {
	SalesStatus model.SalesStatus
	Count       int
	Amount      decimal.Decimal
}

// MethodTotal is the sum of payments for one payment method name.
type MethodTotal struct {
	Name   string
	Amount decimal.Decimal
}

// SummaryRepository runs the read-only aggregates behind sales summaries and
// register closures. Tx variants let Close compute totals under the same
// snapshot that writes the closure row.
type SummaryRepository interface {
	CountByStatus(ctx context.Context, registerID *int64, w Window) ([]StatusCount, error)
	ItemsSold(ctx context.Context, registerID *int64, w Window) (int, error)

	CountByStatusTx(tx *gorm.DB, registerID *int64, w Window) ([]StatusCount, error)
	ItemsSoldTx(tx *gorm.DB, registerID *int64, w Window) (int, error)
	PaymentsByMethodTx(tx *gorm.DB, registerID int64, w Window) ([]MethodTotal, error)
}

type summaryRepo struct{ db *gorm.DB }

func NewSummaryRepository(db *gorm.DB) SummaryRepository { return &summaryRepo{db: db} }

func (r *summaryRepo) CountByStatus(ctx context.Context, registerID *int64, w Window) ([]StatusCount, error) {
	return r.CountByStatusTx(r.db.WithContext(ctx), registerID, w)
}

func (r *summaryRepo) ItemsSold(ctx context.Context, registerID *int64, w Window) (int, error) {
	return r.ItemsSoldTx(r.db.WithContext(ctx), registerID, w)
}

func (r *summaryRepo) CountByStatusTx(tx *gorm.DB, registerID *int64, w Window) ([]StatusCount, error) {
	var rows []StatusCount
	q := tx.Model(&model.SalesTransaction{}).
		Select("sales_status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount")
	q = w.apply(q, "")
	if registerID != nil {
		q = q.Where("cash_register_id = ?", *registerID)
	}
	err := q.Group("sales_status").Scan(&rows).Error
	return rows, err
}

func (r *summaryRepo) ItemsSoldTx(tx *gorm.DB, registerID *int64, w Window) (int, error) {
	var items int
	q := tx.Table("transaction_details AS d").
		Select("COALESCE(SUM(d.quantity), 0)").
		Joins("JOIN sales_transactions st ON st.id = d.sales_transaction_id").
		Where("st.sales_status = ?", model.SalesStatusCompleted)
	q = w.apply(q, "st.")
	if registerID != nil {
		q = q.Where("st.cash_register_id = ?", *registerID)
	}
	err := q.Scan(&items).Error
	return items, err
}

func (r *summaryRepo) PaymentsByMethodTx(tx *gorm.DB, registerID int64, w Window) ([]MethodTotal, error) {
	var rows []MethodTotal
	q := tx.Table("transaction_payments AS p").
		Select("pm.name AS name, COALESCE(SUM(p.amount), 0) AS amount").
		Joins("JOIN payment_methods pm ON pm.id = p.payment_method_id").
		Joins("JOIN sales_transactions st ON st.id = p.sales_transaction_id").
		Where("st.sales_status = ?", model.SalesStatusCompleted).
		Where("st.cash_register_id = ?", registerID)
	q = w.apply(q, "st.")
	err := q.Group("pm.name").Scan(&rows).Error
	return rows, err
}

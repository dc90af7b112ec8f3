package service

import (
	"context"
	"time"

	"eventpos/internal/clock"
	"eventpos/internal/model"
	"eventpos/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesSummary is the projection of one business day, optionally scoped to a
// register. TotalSales and TotalItemsSold count Completed sales only.
type SalesSummary struct {
	Day                   time.Time
	TotalTransactions     int
	CompletedTransactions int
	PendingTransactions   int
	CancelledTransactions int
	TotalSales            decimal.Decimal
	AverageTransaction    decimal.Decimal
	TotalItemsSold        int
}

// RegisterTotals feeds a closure: Completed sales of one register since it
// was opened.
type RegisterTotals struct {
	Transactions int
	ItemsSold    int
	SalesAmount  decimal.Decimal
	ByMethod     map[string]decimal.Decimal
}

// Method returns the total for a payment method name, zero when unused.
func (t *RegisterTotals) Method(name string) decimal.Decimal {
	if v, ok := t.ByMethod[name]; ok {
		return v
	}
	return decimal.Zero
}

// SalesSummaryProjector is read-only: it never writes.
type SalesSummaryProjector interface {
	Summarize(ctx context.Context, registerID *int64, day time.Time) (*SalesSummary, error)
	RegisterTotalsTx(ctx context.Context, tx *gorm.DB, registerID int64, since time.Time) (*RegisterTotals, error)
}

type salesSummaryProjector struct {
	repo repository.SummaryRepository
	loc  *time.Location
}

func NewSalesSummaryProjector(repo repository.SummaryRepository, loc *time.Location) SalesSummaryProjector {
	if loc == nil {
		loc = time.UTC
	}
	return &salesSummaryProjector{repo: repo, loc: loc}
}

// Summarize aggregates the business day containing day.
func (p *salesSummaryProjector) Summarize(ctx context.Context, registerID *int64, day time.Time) (*SalesSummary, error) {
	start, end := clock.BusinessDay(day, p.loc)
	w := repository.Window{From: start, To: end}

	counts, err := p.repo.CountByStatus(ctx, registerID, w)
	if err != nil {
		return nil, err
	}
	items, err := p.repo.ItemsSold(ctx, registerID, w)
	if err != nil {
		return nil, err
	}

	s := &SalesSummary{Day: start, TotalSales: decimal.Zero, AverageTransaction: decimal.Zero, TotalItemsSold: items}
	for _, c := range counts {
		s.TotalTransactions += c.Count
		switch c.SalesStatus {
		case model.SalesStatusCompleted:
			s.CompletedTransactions = c.Count
			s.TotalSales = c.Amount
		case model.SalesStatusPending:
			s.PendingTransactions = c.Count
		case model.SalesStatusCancelled:
			s.CancelledTransactions = c.Count
		}
	}
	if s.CompletedTransactions > 0 {
		s.AverageTransaction = s.TotalSales.Div(decimal.NewFromInt(int64(s.CompletedTransactions))).Round(2)
	}
	return s, nil
}

// RegisterTotalsTx sums Completed sales of the register completed at or
// after since. Change handed back on overpayment leaves the drawer in cash, so it
// is taken off the Cash bucket.
func (p *salesSummaryProjector) RegisterTotalsTx(ctx context.Context, tx *gorm.DB, registerID int64, since time.Time) (*RegisterTotals, error) {
	w := repository.Window{From: since, ByCompletion: true}

	counts, err := p.repo.CountByStatusTx(tx, &registerID, w)
	if err != nil {
		return nil, err
	}
	items, err := p.repo.ItemsSoldTx(tx, &registerID, w)
	if err != nil {
		return nil, err
	}
	methods, err := p.repo.PaymentsByMethodTx(tx, registerID, w)
	if err != nil {
		return nil, err
	}

	t := &RegisterTotals{ItemsSold: items, SalesAmount: decimal.Zero, ByMethod: make(map[string]decimal.Decimal)}
	for _, c := range counts {
		if c.SalesStatus == model.SalesStatusCompleted {
			t.Transactions = c.Count
			t.SalesAmount = c.Amount
		}
	}
	paid := decimal.Zero
	for _, m := range methods {
		t.ByMethod[m.Name] = m.Amount
		paid = paid.Add(m.Amount)
	}
	if change := paid.Sub(t.SalesAmount); change.IsPositive() {
		t.ByMethod[model.PaymentMethodCash] = t.Method(model.PaymentMethodCash).Sub(change)
	}
	return t, nil
}

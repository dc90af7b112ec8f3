// Package engine assembles the sales, cash register, inventory and summary
// services over one database so a host process can consume them in-process.
package engine

import (
	"time"

	"eventpos/internal/clock"
	"eventpos/internal/metrics"
	"eventpos/internal/repository"
	"eventpos/internal/service"

	"gorm.io/gorm"
)

type Options struct {
	StrictStock bool
	// Location is the business timezone; nil means UTC.
	Location *time.Location
	// Clock defaults to the system clock.
	Clock clock.Clock
	// Jobs receives post-commit work; nil disables alerts and reports.
	Jobs    service.JobQueue
	Metrics *metrics.Metrics
}

// Engine is the public surface of the sales and reconciliation core.
type Engine struct {
	Ledger    service.InventoryLedger
	Registers service.CashRegisterService
	Sales     service.SalesTransactionService
	Projector service.SalesSummaryProjector
}

func New(db *gorm.DB, opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System()
	}
	jobs := opts.Jobs

	tx := repository.NewTxRunner(db)
	products := repository.NewProductRepository(db)
	sales := repository.NewSalesTransactionRepository(db)
	refs := repository.NewReferenceRepository(db)

	projector := service.NewSalesSummaryProjector(repository.NewSummaryRepository(db), opts.Location)
	ledger := service.NewInventoryLedger(tx, products, repository.NewMovementRepository(db), clk, opts.StrictStock, opts.Metrics)
	registers := service.NewCashRegisterService(tx, repository.NewCashRegisterRepository(db), sales, refs, projector, jobs, clk, opts.Metrics)

	return &Engine{
		Ledger:    ledger,
		Registers: registers,
		Sales:     service.NewSalesTransactionService(tx, sales, products, refs, registers, ledger, projector, jobs, clk, opts.Location, opts.Metrics),
		Projector: projector,
	}
}

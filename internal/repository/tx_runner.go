package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner executes fn as one unit of work. Every repository method suffixed
// with Tx must be called with the tx handed to fn.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct{ db *gorm.DB }

func NewTxRunner(db *gorm.DB) TxRunner { return &gormTxRunner{db: db} }

// Run commits when fn returns nil and rolls back on error or panic.
func (r *gormTxRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

package infra

import (
	"fmt"

	"eventpos/internal/config"
	"eventpos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date with RunMigrations.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates all tables, applies the idempotent patches
// AutoMigrate cannot express and seeds reference rows. Integration tests call
// it directly against a throwaway container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Activity{},
		&model.User{},
		&model.PaymentMethod{},
		&model.Product{},
		&model.Combo{},
		&model.ComboItem{},
		&model.InventoryMovementType{},
		&model.InventoryMovement{},
		&model.CashRegister{},
		&model.CashRegisterClosure{},
		&model.SalesTransaction{},
		&model.TransactionDetail{},
		&model.TransactionPayment{},
		&model.TransactionSequence{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	if err := seedReferenceData(db); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}
	return nil
}

// applySchemaPatches runs DDL that GORM tags cannot express. Every statement
// is guarded so re-running on an already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"movement arithmetic check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_inventory_movements_arithmetic') THEN
    ALTER TABLE inventory_movements
      ADD CONSTRAINT chk_inventory_movements_arithmetic
      CHECK (new_quantity = previous_quantity + quantity);
  END IF;
END $$`},
		{"detail references exactly one of product / combo", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_transaction_details_target') THEN
    ALTER TABLE transaction_details
      ADD CONSTRAINT chk_transaction_details_target
      CHECK ((product_id IS NULL) <> (combo_id IS NULL));
  END IF;
END $$`},
		{"detail amount check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_transaction_details_amount') THEN
    ALTER TABLE transaction_details
      ADD CONSTRAINT chk_transaction_details_amount
      CHECK (quantity > 0 AND total_amount = quantity * unit_price);
  END IF;
END $$`},
		{"sales status check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_sales_transactions_status') THEN
    ALTER TABLE sales_transactions
      ADD CONSTRAINT chk_sales_transactions_status
      CHECK (sales_status IN ('Pending', 'Completed', 'Cancelled'));
  END IF;
END $$`},
		{"payment amount check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_transaction_payments_amount') THEN
    ALTER TABLE transaction_payments
      ADD CONSTRAINT chk_transaction_payments_amount CHECK (amount > 0);
  END IF;
END $$`},
		// closure window lookups: completed sales of one register by completion time
		{"partial index for closure window", `
CREATE INDEX IF NOT EXISTS idx_sales_transactions_completed_window
    ON sales_transactions (cash_register_id, completed_at)
    WHERE sales_status = 'Completed'`},
		{"partial index for open registers", `
CREATE INDEX IF NOT EXISTS idx_cash_registers_open
    ON cash_registers (activity_id)
    WHERE is_open = true`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

// seedReferenceData inserts the fixed movement types and the default payment
// methods. Existing rows are left untouched.
func seedReferenceData(db *gorm.DB) error {
	types := []model.InventoryMovementType{
		{ID: model.MovementTypeEntry, Name: model.MovementTypeName(model.MovementTypeEntry)},
		{ID: model.MovementTypeSale, Name: model.MovementTypeName(model.MovementTypeSale)},
		{ID: model.MovementTypeAdjustment, Name: model.MovementTypeName(model.MovementTypeAdjustment)},
		{ID: model.MovementTypeReturn, Name: model.MovementTypeName(model.MovementTypeReturn)},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&types).Error; err != nil {
		return err
	}

	methods := []model.PaymentMethod{
		{Name: model.PaymentMethodCash, RequiresReference: false, IsActive: true},
		{Name: model.PaymentMethodCard, RequiresReference: true, IsActive: true},
		{Name: model.PaymentMethodSINPE, RequiresReference: true, IsActive: true},
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&methods).Error
}

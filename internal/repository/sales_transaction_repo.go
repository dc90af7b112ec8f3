package repository

import (
	"context"
	"time"

	"eventpos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesQuery narrows a sales listing. From/To bound TransactionDate as [From, To).
type SalesQuery struct {
	CashRegisterID *int64
	From           *time.Time
	To             *time.Time
	Status         *model.SalesStatus
	Page           int
	Limit          int
}

// SalesTransactionRepository persists sales with their details and payments.
type SalesTransactionRepository interface {
	FindByID(ctx context.Context, id int64) (*model.SalesTransaction, error)
	List(ctx context.Context, q SalesQuery) ([]model.SalesTransaction, int64, error)
	CountByRegister(ctx context.Context, registerID int64) (int64, error)

	// Used inside transactions; callers must pass the tx instance
	CreateTx(tx *gorm.DB, t *model.SalesTransaction) error
	FindByIDForUpdateTx(tx *gorm.DB, id int64) (*model.SalesTransaction, error)
	UpdateTx(tx *gorm.DB, t *model.SalesTransaction) error
	ReplaceDetailsTx(tx *gorm.DB, transactionID int64, details []model.TransactionDetail) error
	CreatePaymentsTx(tx *gorm.DB, payments []model.TransactionPayment) error

	// NextSequenceTx returns the next per-register number for the given
	// business day, starting at 1.
	NextSequenceTx(tx *gorm.DB, registerID int64, businessDay time.Time) (int, error)
}

type salesTransactionRepo struct{ db *gorm.DB }

func NewSalesTransactionRepository(db *gorm.DB) SalesTransactionRepository {
	return &salesTransactionRepo{db: db}
}

func (r *salesTransactionRepo) FindByID(ctx context.Context, id int64) (*model.SalesTransaction, error) {
	var t model.SalesTransaction
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *salesTransactionRepo) List(ctx context.Context, q SalesQuery) ([]model.SalesTransaction, int64, error) {
	var txns []model.SalesTransaction
	var total int64

	db := r.db.WithContext(ctx).Model(&model.SalesTransaction{})
	if q.CashRegisterID != nil {
		db = db.Where("cash_register_id = ?", *q.CashRegisterID)
	}
	if q.From != nil {
		db = db.Where("transaction_date >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("transaction_date < ?", *q.To)
	}
	if q.Status != nil {
		db = db.Where("sales_status = ?", *q.Status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	err := db.Preload("Details").Preload("Payments").
		Order("transaction_date DESC, id DESC").
		Limit(q.Limit).Offset(offset).
		Find(&txns).Error
	return txns, total, err
}

func (r *salesTransactionRepo) CountByRegister(ctx context.Context, registerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SalesTransaction{}).
		Where("cash_register_id = ?", registerID).
		Count(&count).Error
	return count, err
}

func (r *salesTransactionRepo) CreateTx(tx *gorm.DB, t *model.SalesTransaction) error {
	return tx.Create(t).Error
}

func (r *salesTransactionRepo) FindByIDForUpdateTx(tx *gorm.DB, id int64) (*model.SalesTransaction, error) {
	var t model.SalesTransaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTx writes the header columns only; details and payments have their
// own write paths.
func (r *salesTransactionRepo) UpdateTx(tx *gorm.DB, t *model.SalesTransaction) error {
	return tx.Omit(clause.Associations).Save(t).Error
}

func (r *salesTransactionRepo) ReplaceDetailsTx(tx *gorm.DB, transactionID int64, details []model.TransactionDetail) error {
	if err := tx.Where("sales_transaction_id = ?", transactionID).Delete(&model.TransactionDetail{}).Error; err != nil {
		return err
	}
	for i := range details {
		details[i].ID = 0
		details[i].SalesTransactionID = transactionID
	}
	if len(details) == 0 {
		return nil
	}
	return tx.Create(&details).Error
}

func (r *salesTransactionRepo) CreatePaymentsTx(tx *gorm.DB, payments []model.TransactionPayment) error {
	if len(payments) == 0 {
		return nil
	}
	return tx.Create(&payments).Error
}

func (r *salesTransactionRepo) NextSequenceTx(tx *gorm.DB, registerID int64, businessDay time.Time) (int, error) {
	var next int
	err := tx.Raw(`
		INSERT INTO transaction_sequences (cash_register_id, business_date, last_value)
		VALUES (?, ?::date, 1)
		ON CONFLICT (cash_register_id, business_date)
		DO UPDATE SET last_value = transaction_sequences.last_value + 1
		RETURNING last_value`,
		registerID, businessDay.Format("2006-01-02"),
	).Scan(&next).Error
	return next, err
}

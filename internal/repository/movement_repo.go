package repository

import (
	"context"

	"eventpos/internal/model"

	"gorm.io/gorm"
)

// MovementQuery narrows a ledger listing. Zero values mean "any".
type MovementQuery struct {
	ProductID          *int64
	SalesTransactionID *int64
	MovementTypeID     *int64
	Page               int
	Limit              int
}

// MovementRepository persists inventory ledger postings. There is no update
// or delete: the ledger is append-only.
type MovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.InventoryMovement) error
	List(ctx context.Context, q MovementQuery) ([]model.InventoryMovement, int64, error)
	ListByProduct(ctx context.Context, productID int64) ([]model.InventoryMovement, error)

	// ListBySaleTx returns the postings of one type linked to a sale, oldest first.
	ListBySaleTx(tx *gorm.DB, salesTransactionID, movementTypeID int64) ([]model.InventoryMovement, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.InventoryMovement) error {
	return tx.Create(m).Error
}

func (r *movementRepo) List(ctx context.Context, q MovementQuery) ([]model.InventoryMovement, int64, error) {
	var movements []model.InventoryMovement
	var total int64

	db := r.db.WithContext(ctx).Model(&model.InventoryMovement{})
	if q.ProductID != nil {
		db = db.Where("product_id = ?", *q.ProductID)
	}
	if q.SalesTransactionID != nil {
		db = db.Where("sales_transaction_id = ?", *q.SalesTransactionID)
	}
	if q.MovementTypeID != nil {
		db = db.Where("movement_type_id = ?", *q.MovementTypeID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	err := db.Order("id ASC").Limit(q.Limit).Offset(offset).Find(&movements).Error
	return movements, total, err
}

func (r *movementRepo) ListByProduct(ctx context.Context, productID int64) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&movements).Error
	return movements, err
}

func (r *movementRepo) ListBySaleTx(tx *gorm.DB, salesTransactionID, movementTypeID int64) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	err := tx.Where("sales_transaction_id = ? AND movement_type_id = ?", salesTransactionID, movementTypeID).
		Order("id ASC").
		Find(&movements).Error
	return movements, err
}

package repository

import (
	"context"

	"eventpos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository is the product and combo lookup capability. Stock is
// changed only through ApplyDeltaTx, which the inventory ledger owns.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	FindComboByID(ctx context.Context, id int64) (*model.Combo, error)
	CreateCombo(ctx context.Context, c *model.Combo) error

	// Used inside transactions; callers must pass the tx instance
	FindByIDTx(tx *gorm.DB, id int64) (*model.Product, error)
	FindComboByIDTx(tx *gorm.DB, id int64) (*model.Combo, error)

	// ApplyDeltaTx adds delta to current_quantity in a single UPDATE and returns
	// the resulting quantity. With guard set the update only applies when the
	// result stays >= 0. applied is false when no row matched.
	ApplyDeltaTx(tx *gorm.DB, id int64, delta int, guard bool) (newQty int, applied bool, err error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepo) FindComboByID(ctx context.Context, id int64) (*model.Combo, error) {
	return r.FindComboByIDTx(r.db.WithContext(ctx), id)
}

func (r *productRepo) FindComboByIDTx(tx *gorm.DB, id int64) (*model.Combo, error) {
	var c model.Combo
	err := tx.Preload("Items").Preload("Items.Product").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *productRepo) CreateCombo(ctx context.Context, c *model.Combo) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *productRepo) FindByIDTx(tx *gorm.DB, id int64) (*model.Product, error) {
	var p model.Product
	if err := tx.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ApplyDeltaTx(tx *gorm.DB, id int64, delta int, guard bool) (int, bool, error) {
	var p model.Product
	q := tx.Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "current_quantity"}}}).
		Where("id = ?", id)
	if guard {
		q = q.Where("current_quantity + ? >= 0", delta)
	}
	res := q.Update("current_quantity", gorm.Expr("current_quantity + ?", delta))
	if res.Error != nil {
		return 0, false, res.Error
	}
	return p.CurrentQuantity, res.RowsAffected == 1, nil
}

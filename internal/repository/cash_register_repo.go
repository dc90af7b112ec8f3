package repository

import (
	"context"

	"eventpos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashRegisterRepository persists registers and their closures.
type CashRegisterRepository interface {
	Create(ctx context.Context, r *model.CashRegister) error
	FindByID(ctx context.Context, id int64) (*model.CashRegister, error)
	// NumberTaken reports whether number is used in the activity by a register
	// other than excludeID.
	NumberTaken(ctx context.Context, activityID int64, number int, excludeID int64) (bool, error)
	ListOpen(ctx context.Context, activityID *int64) ([]model.CashRegister, error)
	Delete(ctx context.Context, id int64) error

	FindClosureByID(ctx context.Context, id int64) (*model.CashRegisterClosure, error)
	FindLastClosure(ctx context.Context, registerID int64) (*model.CashRegisterClosure, error)

	// Used inside transactions; callers must pass the tx instance
	FindByIDForUpdateTx(tx *gorm.DB, id int64) (*model.CashRegister, error)
	// FindByIDForShareTx lets concurrent sales proceed while blocking a close.
	FindByIDForShareTx(tx *gorm.DB, id int64) (*model.CashRegister, error)
	UpdateTx(tx *gorm.DB, r *model.CashRegister) error
	CreateClosureTx(tx *gorm.DB, c *model.CashRegisterClosure) error
}

type cashRegisterRepo struct{ db *gorm.DB }

func NewCashRegisterRepository(db *gorm.DB) CashRegisterRepository {
	return &cashRegisterRepo{db: db}
}

func (r *cashRegisterRepo) Create(ctx context.Context, reg *model.CashRegister) error {
	return r.db.WithContext(ctx).Create(reg).Error
}

func (r *cashRegisterRepo) FindByID(ctx context.Context, id int64) (*model.CashRegister, error) {
	var reg model.CashRegister
	if err := r.db.WithContext(ctx).First(&reg, id).Error; err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *cashRegisterRepo) NumberTaken(ctx context.Context, activityID int64, number int, excludeID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CashRegister{}).
		Where("activity_id = ? AND register_number = ? AND id <> ?", activityID, number, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *cashRegisterRepo) ListOpen(ctx context.Context, activityID *int64) ([]model.CashRegister, error) {
	var regs []model.CashRegister
	q := r.db.WithContext(ctx).Where("is_open = true")
	if activityID != nil {
		q = q.Where("activity_id = ?", *activityID)
	}
	err := q.Order("register_number ASC").Find(&regs).Error
	return regs, err
}

func (r *cashRegisterRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.CashRegister{}, id).Error
}

func (r *cashRegisterRepo) FindClosureByID(ctx context.Context, id int64) (*model.CashRegisterClosure, error) {
	var c model.CashRegisterClosure
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cashRegisterRepo) FindLastClosure(ctx context.Context, registerID int64) (*model.CashRegisterClosure, error) {
	var c model.CashRegisterClosure
	err := r.db.WithContext(ctx).
		Where("cash_register_id = ?", registerID).
		Order("closing_date DESC, id DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cashRegisterRepo) FindByIDForUpdateTx(tx *gorm.DB, id int64) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reg, id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *cashRegisterRepo) FindByIDForShareTx(tx *gorm.DB, id int64) (*model.CashRegister, error) {
	var reg model.CashRegister
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).First(&reg, id).Error
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *cashRegisterRepo) UpdateTx(tx *gorm.DB, reg *model.CashRegister) error {
	return tx.Save(reg).Error
}

func (r *cashRegisterRepo) CreateClosureTx(tx *gorm.DB, c *model.CashRegisterClosure) error {
	return tx.Create(c).Error
}

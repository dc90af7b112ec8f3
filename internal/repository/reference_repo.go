package repository

import (
	"context"

	"eventpos/internal/model"

	"gorm.io/gorm"
)

// ReferenceRepository reads master data owned outside the engine: activities,
// users and payment methods.
type ReferenceRepository interface {
	FindActivity(ctx context.Context, id int64) (*model.Activity, error)
	FindUser(ctx context.Context, id int64) (*model.User, error)
	FindPaymentMethod(ctx context.Context, id int64) (*model.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error)
}

type referenceRepo struct{ db *gorm.DB }

func NewReferenceRepository(db *gorm.DB) ReferenceRepository { return &referenceRepo{db: db} }

func (r *referenceRepo) FindActivity(ctx context.Context, id int64) (*model.Activity, error) {
	var a model.Activity
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *referenceRepo) FindUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *referenceRepo) FindPaymentMethod(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	var pm model.PaymentMethod
	if err := r.db.WithContext(ctx).First(&pm, id).Error; err != nil {
		return nil, err
	}
	return &pm, nil
}

func (r *referenceRepo) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	var methods []model.PaymentMethod
	err := r.db.WithContext(ctx).Order("id ASC").Find(&methods).Error
	return methods, err
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"smartflow/backend/internal/model"
)

// SpecialtyRepository reads the specialty catalogue.
type SpecialtyRepository interface {
	GetByID(ctx context.Context, id string) (*model.Specialty, error)
	List(ctx context.Context, includeInactive bool) ([]model.Specialty, error)
}

type specialtyRepo struct {
	db *gorm.DB
}

// NewSpecialtyRepo creates a SpecialtyRepository.
func NewSpecialtyRepo(db *gorm.DB) SpecialtyRepository {
	return &specialtyRepo{db: db}
}

func (r *specialtyRepo) GetByID(ctx context.Context, id string) (*model.Specialty, error) {
	var s model.Specialty
	if err := r.db.WithContext(ctx).Where("especialidad_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *specialtyRepo) List(ctx context.Context, includeInactive bool) ([]model.Specialty, error) {
	var list []model.Specialty
	db := r.db.WithContext(ctx)
	if !includeInactive {
		db = db.Where("activa = ?", true)
	}
	err := db.Order("nombre ASC").Find(&list).Error
	return list, err
}

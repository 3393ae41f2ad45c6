package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"smartflow/backend/internal/model"
)

// DoctorFilter narrows ListDoctors; zero values mean "any".
type DoctorFilter struct {
	SpecialtyID string
	DoctorID    string
	Weekday     *time.Weekday // only doctors with a window on this day
}

// UserRepository reads patients and doctors.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListDoctors(ctx context.Context, filter DoctorFilter) ([]model.User, error)
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepository.
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func preloadDoctorProfile(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Specialties", func(db *gorm.DB) *gorm.DB {
			return db.Order("especialidades.nombre ASC")
		}).
		Preload("Availability", func(db *gorm.DB) *gorm.DB {
			return db.Order("dia_semana ASC, hora_inicio ASC")
		})
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := preloadDoctorProfile(r.db.WithContext(ctx)).
		Where("usuario_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListDoctors(ctx context.Context, filter DoctorFilter) ([]model.User, error) {
	var doctors []model.User
	db := r.db.WithContext(ctx).
		Where("rol = ? AND activo = ?", model.RoleDoctor, true)

	if filter.DoctorID != "" {
		db = db.Where("usuario_id = ?", filter.DoctorID)
	}
	if filter.SpecialtyID != "" {
		db = db.Where("EXISTS (SELECT 1 FROM medico_especialidades me WHERE me.medico_id = usuarios.usuario_id AND me.especialidad_id = ?)", filter.SpecialtyID)
	}
	if filter.Weekday != nil {
		db = db.Where("EXISTS (SELECT 1 FROM horarios_medico hm WHERE hm.medico_id = usuarios.usuario_id AND hm.dia_semana = ?)", int(*filter.Weekday))
	}

	// creation order is the deterministic tie-break for queue load balancing
	err := preloadDoctorProfile(db).
		Order("created_at ASC, usuario_id ASC").
		Find(&doctors).Error
	return doctors, err
}

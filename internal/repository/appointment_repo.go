package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartflow/backend/internal/model"
	pkgerrors "smartflow/backend/pkg/errors"
)

// AppointmentFilter narrows ListByDate; zero values mean "any".
type AppointmentFilter struct {
	SpecialtyID string
	DoctorID    string
	Statuses    []string
}

// PatientAppointmentFilter narrows ListByPatient.
type PatientAppointmentFilter struct {
	Statuses   []string
	FromDate   model.Date // inclusive lower bound
	BeforeDate model.Date // exclusive upper bound
	Descending bool
}

// AppointmentRepository persists citas.
type AppointmentRepository interface {
	// Create inserts the row; a concurrent booking of the same active slot
	// fails with ErrSlotTaken.
	Create(ctx context.Context, a *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	ExistsActive(ctx context.Context, doctorID string, date model.Date, clock string) (bool, error)
	ListBookedTimes(ctx context.Context, doctorID string, date model.Date) ([]string, error)
	ListByDate(ctx context.Context, date model.Date, filter AppointmentFilter) ([]model.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, filter PatientAppointmentFilter) ([]model.Appointment, error)
	// UpdateStatus writes a.Status if the stored version still equals a.Version.
	UpdateStatus(ctx context.Context, a *model.Appointment) error
}

type appointmentRepo struct {
	db *gorm.DB
}

// NewAppointmentRepo creates an AppointmentRepository.
func NewAppointmentRepo(db *gorm.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func preloadAppointment(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Patient").
		Preload("Doctor").
		Preload("Doctor.Specialties").
		Preload("Specialty")
}

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error
	return translateWriteError(err)
}

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	var a model.Appointment
	err := preloadAppointment(r.db.WithContext(ctx)).
		Where("cita_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepo) ExistsActive(ctx context.Context, doctorID string, date model.Date, clock string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("medico_id = ? AND fecha = ? AND hora = ? AND estado IN ?",
			doctorID, date, clock, model.ActiveAppointmentStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *appointmentRepo) ListBookedTimes(ctx context.Context, doctorID string, date model.Date) ([]string, error) {
	var times []string
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("medico_id = ? AND fecha = ? AND estado IN ?", doctorID, date, model.ActiveAppointmentStatuses).
		Order("hora ASC").
		Pluck("hora", &times).Error
	return times, err
}

func (r *appointmentRepo) ListByDate(ctx context.Context, date model.Date, filter AppointmentFilter) ([]model.Appointment, error) {
	var list []model.Appointment
	db := r.db.WithContext(ctx).Where("fecha = ?", date)

	if filter.SpecialtyID != "" {
		db = db.Where("especialidad_id = ?", filter.SpecialtyID)
	}
	if filter.DoctorID != "" {
		db = db.Where("medico_id = ?", filter.DoctorID)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("estado IN ?", filter.Statuses)
	}

	err := preloadAppointment(db).
		Order("hora ASC, created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *appointmentRepo) ListByPatient(ctx context.Context, patientID string, filter PatientAppointmentFilter) ([]model.Appointment, error) {
	var list []model.Appointment
	db := r.db.WithContext(ctx).Where("paciente_id = ?", patientID)

	if len(filter.Statuses) > 0 {
		db = db.Where("estado IN ?", filter.Statuses)
	}
	if filter.FromDate != "" {
		db = db.Where("fecha >= ?", filter.FromDate)
	}
	if filter.BeforeDate != "" {
		db = db.Where("fecha < ?", filter.BeforeDate)
	}

	order := "fecha ASC, hora ASC"
	if filter.Descending {
		order = "fecha DESC, hora DESC"
	}
	err := preloadAppointment(db).Order(order).Find(&list).Error
	return list, err
}

func (r *appointmentRepo) UpdateStatus(ctx context.Context, a *model.Appointment) error {
	oldVersion := a.Version
	result := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("cita_id = ? AND version = ?", a.AppointmentID, oldVersion).
		Updates(map[string]interface{}{
			"estado":     a.Status,
			"pagado":     a.Paid,
			"updated_by": a.UpdatedBy,
			"updated_at": time.Now(),
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	a.Version = oldVersion + 1
	return nil
}

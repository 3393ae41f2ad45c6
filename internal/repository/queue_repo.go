package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartflow/backend/internal/model"
	pkgerrors "smartflow/backend/pkg/errors"
)

// QueueRepository persists turnos.
type QueueRepository interface {
	// Create inserts the entry. Returns ErrTurnNumberTaken when another
	// writer claimed the same number, ErrActiveEntryExists when the patient
	// already holds an active entry for the specialty and day.
	Create(ctx context.Context, e *model.QueueEntry) error
	GetByID(ctx context.Context, id string) (*model.QueueEntry, error)
	// MaxNumber is the highest number issued for the specialty and day, 0 if none.
	MaxNumber(ctx context.Context, specialtyID string, date model.Date) (int, error)
	// CountWaiting counts en_espera and llamando entries.
	CountWaiting(ctx context.Context, specialtyID string, date model.Date) (int64, error)
	// CountWaitingAhead counts en_espera and llamando entries numbered below number.
	CountWaitingAhead(ctx context.Context, specialtyID string, date model.Date, number int) (int64, error)
	// CountWaitingByDoctor counts en_espera and llamando entries per doctor,
	// across all specialties. Doctors with no entries are absent from the map.
	CountWaitingByDoctor(ctx context.Context, date model.Date, doctorIDs []string) (map[string]int64, error)
	FindActiveForPatient(ctx context.Context, patientID, specialtyID string, date model.Date) (*model.QueueEntry, error)
	// FindCurrentForPatient returns the most recently arrived active entry of
	// the day, optionally within one specialty.
	FindCurrentForPatient(ctx context.Context, patientID string, date model.Date, specialtyID string) (*model.QueueEntry, error)
	ListByDate(ctx context.Context, date model.Date, specialtyID string) ([]model.QueueEntry, error)
	// UpdateStatus writes the status and timestamps if the stored version
	// still equals e.Version.
	UpdateStatus(ctx context.Context, e *model.QueueEntry) error
}

type queueRepo struct {
	db *gorm.DB
}

// NewQueueRepo creates a QueueRepository.
func NewQueueRepo(db *gorm.DB) QueueRepository {
	return &queueRepo{db: db}
}

func preloadQueueEntry(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Patient").
		Preload("Doctor").
		Preload("Specialty")
}

func (r *queueRepo) Create(ctx context.Context, e *model.QueueEntry) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error
	return translateWriteError(err)
}

func (r *queueRepo) GetByID(ctx context.Context, id string) (*model.QueueEntry, error) {
	var e model.QueueEntry
	err := preloadQueueEntry(r.db.WithContext(ctx)).
		Where("turno_id = ?", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *queueRepo) MaxNumber(ctx context.Context, specialtyID string, date model.Date) (int, error) {
	var highest int
	err := r.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Select("COALESCE(MAX(numero), 0)").
		Where("especialidad_id = ? AND fecha = ?", specialtyID, date).
		Scan(&highest).Error
	return highest, err
}

func (r *queueRepo) CountWaiting(ctx context.Context, specialtyID string, date model.Date) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Where("especialidad_id = ? AND fecha = ? AND estado IN ?", specialtyID, date, model.WaitingQueueStatuses).
		Count(&count).Error
	return count, err
}

func (r *queueRepo) CountWaitingAhead(ctx context.Context, specialtyID string, date model.Date, number int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Where("especialidad_id = ? AND fecha = ? AND estado IN ? AND numero < ?",
			specialtyID, date, model.WaitingQueueStatuses, number).
		Count(&count).Error
	return count, err
}

func (r *queueRepo) CountWaitingByDoctor(ctx context.Context, date model.Date, doctorIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(doctorIDs))
	if len(doctorIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		DoctorID string `gorm:"column:medico_id"`
		Total    int64  `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Select("medico_id, COUNT(*) AS total").
		Where("fecha = ? AND estado IN ? AND medico_id IN ?", date, model.WaitingQueueStatuses, doctorIDs).
		Group("medico_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.DoctorID] = row.Total
	}
	return counts, nil
}

func (r *queueRepo) FindActiveForPatient(ctx context.Context, patientID, specialtyID string, date model.Date) (*model.QueueEntry, error) {
	var e model.QueueEntry
	err := r.db.WithContext(ctx).
		Where("paciente_id = ? AND especialidad_id = ? AND fecha = ? AND estado IN ?",
			patientID, specialtyID, date, model.ActiveQueueStatuses).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *queueRepo) FindCurrentForPatient(ctx context.Context, patientID string, date model.Date, specialtyID string) (*model.QueueEntry, error) {
	var e model.QueueEntry
	db := r.db.WithContext(ctx).
		Where("paciente_id = ? AND fecha = ? AND estado IN ?", patientID, date, model.ActiveQueueStatuses)
	if specialtyID != "" {
		db = db.Where("especialidad_id = ?", specialtyID)
	}
	err := preloadQueueEntry(db).
		Order("hora_llegada DESC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *queueRepo) ListByDate(ctx context.Context, date model.Date, specialtyID string) ([]model.QueueEntry, error) {
	var list []model.QueueEntry
	db := r.db.WithContext(ctx).Where("fecha = ?", date)
	if specialtyID != "" {
		db = db.Where("especialidad_id = ?", specialtyID)
	}
	err := preloadQueueEntry(db).
		Order("especialidad_id ASC, numero ASC").
		Find(&list).Error
	return list, err
}

func (r *queueRepo) UpdateStatus(ctx context.Context, e *model.QueueEntry) error {
	oldVersion := e.Version
	result := r.db.WithContext(ctx).
		Model(&model.QueueEntry{}).
		Where("turno_id = ? AND version = ?", e.EntryID, oldVersion).
		Updates(map[string]interface{}{
			"estado":          e.Status,
			"hora_llamado":    e.CalledAt,
			"hora_atencion":   e.ServedAt,
			"hora_completado": e.CompletedAt,
			"updated_by":      e.UpdatedBy,
			"updated_at":      time.Now(),
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	e.Version = oldVersion + 1
	return nil
}

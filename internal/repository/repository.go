package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every data access interface.
type Repository struct {
	db *gorm.DB

	User        UserRepository
	Specialty   SpecialtyRepository
	Appointment AppointmentRepository
	Queue       QueueRepository
}

// NewRepository builds the aggregate over db (a pool or a transaction).
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:          db,
		User:        NewUserRepo(db),
		Specialty:   NewSpecialtyRepo(db),
		Appointment: NewAppointmentRepo(db),
		Queue:       NewQueueRepo(db),
	}
}

// WithTransaction runs fn against a repository bound to one transaction.
// An aggregate assembled by hand (no db) runs fn directly on itself.
func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

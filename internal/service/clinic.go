package service

import (
	"time"

	"smartflow/backend/config"
	"smartflow/backend/internal/model"
)

// Clinic holds the scheduling rules and the clock every service reads
// "today" from.
type Clinic struct {
	Name                string
	Address             string
	Location            *time.Location
	AvailabilityDays    int
	MaxAvailabilityDays int
	SlotMinutes         int
	TurnMinutes         int
	QueueRetryAttempts  int

	// Now overrides the wall clock in tests.
	Now func() time.Time
}

// NewClinic builds the clinic settings from configuration.
func NewClinic(cfg *config.ClinicConfig) (*Clinic, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Clinic{
		Name:                cfg.Name,
		Address:             cfg.Address,
		Location:            loc,
		AvailabilityDays:    cfg.AvailabilityDays,
		MaxAvailabilityDays: cfg.MaxAvailabilityDays,
		SlotMinutes:         cfg.SlotMinutes,
		TurnMinutes:         cfg.TurnMinutes,
		QueueRetryAttempts:  cfg.QueueRetryAttempts,
	}, nil
}

// now is the current wall-clock time in the clinic time zone.
func (c *Clinic) now() time.Time {
	clock := time.Now
	if c.Now != nil {
		clock = c.Now
	}
	return clock().In(c.Location)
}

// today is the current calendar day in the clinic time zone.
func (c *Clinic) today() model.Date {
	return model.DateOf(c.now())
}

// slotStart is the instant a date and HH:MM slot begins in the clinic.
func (c *Clinic) slotStart(date model.Date, clock string) (time.Time, error) {
	return time.ParseInLocation(model.DateLayout+" 15:04", string(date)+" "+clock, c.Location)
}

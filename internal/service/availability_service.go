package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
	"smartflow/backend/internal/slot"
)

// AvailabilityService derives bookable slots from weekly doctor hours.
type AvailabilityService interface {
	// DoctorAvailability lists free slots per day for days consecutive days
	// starting at from (YYYY-MM-DD, empty means today). Days without free
	// slots are omitted. days <= 0 uses the clinic default.
	DoctorAvailability(ctx context.Context, doctorID, from string, days int) ([]dto.DayAvailability, error)
	// TodayOpenings lists, per doctor working today and per window, the
	// slots still free today.
	TodayOpenings(ctx context.Context, req *dto.TodayOpeningsRequest) (*dto.TodayOpeningsResponse, error)
}

type availabilityService struct {
	repo   *repository.Repository
	clinic *Clinic
	logger *zap.Logger
}

// NewAvailabilityService creates an AvailabilityService.
func NewAvailabilityService(repo *repository.Repository, clinic *Clinic, logger *zap.Logger) AvailabilityService {
	return &availabilityService{repo: repo, clinic: clinic, logger: logger}
}

// ────────────────────── DoctorAvailability ──────────────────────

func (s *availabilityService) DoctorAvailability(ctx context.Context, doctorID, from string, days int) ([]dto.DayAvailability, error) {
	if err := requireUUID("medicoId", doctorID); err != nil {
		return nil, err
	}
	now := s.clinic.now()
	today := model.DateOf(now)
	start := today
	if from != "" {
		parsed, err := model.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		if parsed.Before(today) {
			return nil, fmt.Errorf("%w: desde no puede ser una fecha pasada", ErrValidation)
		}
		start = parsed
	}
	if days <= 0 {
		days = s.clinic.AvailabilityDays
	}
	if days > s.clinic.MaxAvailabilityDays {
		return nil, fmt.Errorf("%w: dias no puede ser mayor a %d", ErrValidation, s.clinic.MaxAvailabilityDays)
	}

	doctor, err := s.repo.User.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		s.logger.Error("failed to load doctor", zap.String("medico_id", doctorID), zap.Error(err))
		return nil, err
	}
	if !doctor.IsDoctor() {
		return nil, ErrDoctorNotFound
	}

	windows := windowsOf(doctor, s.logger)
	result := make([]dto.DayAvailability, 0)
	if len(windows) == 0 {
		return result, nil
	}

	for i := 0; i < days; i++ {
		date := start.AddDays(i)
		if len(slot.ForDay(windows, date.Weekday())) == 0 {
			continue
		}

		booked, err := s.repo.Appointment.ListBookedTimes(ctx, doctorID, date)
		if err != nil {
			s.logger.Error("failed to list booked times",
				zap.String("medico_id", doctorID), zap.String("fecha", date.String()), zap.Error(err))
			return nil, err
		}

		free := slot.Free(windows, booked, date.Time(), now, s.clinic.SlotMinutes)
		if len(free) == 0 {
			continue
		}
		result = append(result, dto.DayAvailability{
			Date:  date.String(),
			Day:   slot.DayName(date.Weekday()),
			Slots: free,
		})
	}
	return result, nil
}

// ────────────────────── TodayOpenings ──────────────────────

func (s *availabilityService) TodayOpenings(ctx context.Context, req *dto.TodayOpeningsRequest) (*dto.TodayOpeningsResponse, error) {
	if err := optionalUUID("especialidadId", req.SpecialtyID); err != nil {
		return nil, err
	}
	if err := optionalUUID("medicoId", req.DoctorID); err != nil {
		return nil, err
	}

	now := s.clinic.now()
	today := model.DateOf(now)
	weekday := today.Weekday()
	resp := &dto.TodayOpeningsResponse{
		Date:    today.String(),
		Weekday: slot.DayName(weekday),
		Items:   make([]dto.DoctorOpenings, 0),
	}

	doctors, err := s.repo.User.ListDoctors(ctx, repository.DoctorFilter{
		SpecialtyID: req.SpecialtyID,
		DoctorID:    req.DoctorID,
		Weekday:     &weekday,
	})
	if err != nil {
		s.logger.Error("failed to list doctors", zap.Error(err))
		return nil, err
	}
	if len(doctors) == 0 {
		return resp, nil
	}

	active, err := s.repo.Appointment.ListByDate(ctx, today, repository.AppointmentFilter{
		DoctorID: req.DoctorID,
		Statuses: model.ActiveAppointmentStatuses,
	})
	if err != nil {
		s.logger.Error("failed to list today's appointments", zap.Error(err))
		return nil, err
	}
	booked := make(map[string][]string)
	for _, a := range active {
		booked[a.DoctorID] = append(booked[a.DoctorID], a.Time)
	}

	for i := range doctors {
		doctor := &doctors[i]
		windows := windowsOf(doctor, s.logger)
		for _, w := range slot.ForDay(windows, weekday) {
			free := slot.Free([]slot.Window{w}, booked[doctor.UserID], today.Time(), now, s.clinic.SlotMinutes)
			if len(free) == 0 {
				continue
			}
			resp.Items = append(resp.Items, dto.DoctorOpenings{
				Doctor:    toDoctorSummary(doctor),
				Window:    dto.WorkingWindow{Start: w.Start, End: w.End},
				Slots:     free,
				SlotCount: len(free),
			})
		}
	}
	return resp, nil
}

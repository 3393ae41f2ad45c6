package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
	"smartflow/backend/internal/slot"
	pkgerrors "smartflow/backend/pkg/errors"
)

// ── appointment errors ──

var (
	ErrInvalidSpecialty    = errors.New("El médico no atiende esta especialidad")
	ErrPastDate            = errors.New("No se pueden agendar citas en fechas u horarios pasados")
	ErrOutsideWorkingHours = errors.New("El médico no atiende en ese horario")
	ErrSlotConflict        = errors.New("Este horario ya está ocupado")
	ErrAppointmentNotFound = errors.New("Cita no encontrada")
	ErrInvalidTransition   = errors.New("Cambio de estado no permitido")
)

var errSpecialtyAmbiguous = fmt.Errorf("%w: especialidadId es requerido para este médico", ErrValidation)

var appointmentTransitions = map[string][]string{
	model.AppointmentPending:   {model.AppointmentConfirmed, model.AppointmentCancelled},
	model.AppointmentConfirmed: {model.AppointmentCompleted, model.AppointmentCancelled},
}

// AppointmentService books and manages citas.
type AppointmentService interface {
	// Book validates the request fail-fast and stores a pendiente cita.
	// Concurrent bookings of one slot yield exactly one success; the rest
	// get ErrSlotConflict.
	Book(ctx context.Context, req *dto.BookAppointmentRequest, caller Caller) (*dto.AppointmentResponse, error)
	ListByPatient(ctx context.Context, patientID, status string, caller Caller) ([]dto.AppointmentResponse, error)
	Upcoming(ctx context.Context, patientID string, caller Caller) ([]dto.AppointmentResponse, error)
	History(ctx context.Context, patientID string, caller Caller) ([]dto.AppointmentResponse, error)
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateAppointmentStatusRequest, caller Caller) (*dto.AppointmentResponse, error)
}

type appointmentService struct {
	repo   *repository.Repository
	clinic *Clinic
	events *event.Dispatcher
	logger *zap.Logger
}

// NewAppointmentService creates an AppointmentService.
func NewAppointmentService(repo *repository.Repository, clinic *Clinic, events *event.Dispatcher, logger *zap.Logger) AppointmentService {
	return &appointmentService{repo: repo, clinic: clinic, events: events, logger: logger}
}

// normalizePaymentMode maps accepted spellings to a stored mode.
func normalizePaymentMode(mode string) (string, bool) {
	switch strings.ToLower(trimmed(mode)) {
	case "", model.PaymentCash, "cash":
		return model.PaymentCash, true
	case model.PaymentOnline:
		return model.PaymentOnline, true
	default:
		return "", false
	}
}

// ═══════════════════════════════════════════════════════════
// Book
// ═══════════════════════════════════════════════════════════
//
// Order: input shape, patient, doctor and specialty link, specialty,
// date, working hours, slot pre-check, insert.

func (s *appointmentService) Book(ctx context.Context, req *dto.BookAppointmentRequest, caller Caller) (*dto.AppointmentResponse, error) {
	// 1. input shape
	if err := requireUUID("pacienteId", req.PatientID); err != nil {
		return nil, err
	}
	if err := requireUUID("medicoId", req.DoctorID); err != nil {
		return nil, err
	}
	if err := optionalUUID("especialidadId", req.SpecialtyID); err != nil {
		return nil, err
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if _, err := slot.ParseClock(req.Time); err != nil {
		return nil, fmt.Errorf("%w: hora debe tener formato HH:MM", ErrValidation)
	}
	reason := trimmed(req.Reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: motivo es requerido", ErrValidation)
	}
	paymentMode, ok := normalizePaymentMode(req.PaymentMode)
	if !ok {
		return nil, fmt.Errorf("%w: modoPago debe ser online o efectivo", ErrValidation)
	}
	if !caller.CanActFor(req.PatientID) {
		return nil, ErrForbidden
	}

	// 2. patient
	patient, err := s.repo.User.GetByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		s.logger.Error("failed to load patient", zap.String("paciente_id", req.PatientID), zap.Error(err))
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, ErrPatientNotFound
	}

	// 3. doctor, offering the specialty
	doctor, err := s.repo.User.GetByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		s.logger.Error("failed to load doctor", zap.String("medico_id", req.DoctorID), zap.Error(err))
		return nil, err
	}
	if !doctor.IsDoctor() {
		return nil, ErrDoctorNotFound
	}
	specialtyID := req.SpecialtyID
	if specialtyID == "" {
		switch len(doctor.Specialties) {
		case 0:
			return nil, ErrInvalidSpecialty
		case 1:
			specialtyID = doctor.Specialties[0].SpecialtyID
		default:
			return nil, errSpecialtyAmbiguous
		}
	}
	if !doctor.OffersSpecialty(specialtyID) {
		return nil, ErrInvalidSpecialty
	}

	// 4. specialty
	specialty, err := s.repo.Specialty.GetByID(ctx, specialtyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSpecialtyNotFound
		}
		s.logger.Error("failed to load specialty", zap.String("especialidad_id", specialtyID), zap.Error(err))
		return nil, err
	}

	// 5. not in the past
	now := s.clinic.now()
	if date.Before(model.DateOf(now)) {
		return nil, ErrPastDate
	}

	// 6. inside a working window, on its grid
	windows := windowsOf(doctor, s.logger)
	weekday := date.Weekday()
	if !slot.Available(windows, weekday, req.Time, s.clinic.SlotMinutes) {
		if hours := slot.Hours(windows, weekday); hours != "" {
			return nil, fmt.Errorf("%w: horario del %s: %s", ErrOutsideWorkingHours, slot.DayName(weekday), hours)
		}
		return nil, fmt.Errorf("%w: no atiende los %s", ErrOutsideWorkingHours, slot.DayName(weekday))
	}
	start, err := s.clinic.slotStart(date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if !start.After(now) {
		return nil, ErrPastDate
	}

	// 7. friendly pre-check; the unique index decides
	taken, err := s.repo.Appointment.ExistsActive(ctx, doctor.UserID, date, req.Time)
	if err != nil {
		s.logger.Error("failed to check slot", zap.Error(err))
		return nil, err
	}
	if taken {
		return nil, ErrSlotConflict
	}

	// 8. insert
	appt := &model.Appointment{
		PatientID:   patient.UserID,
		DoctorID:    doctor.UserID,
		SpecialtyID: specialty.SpecialtyID,
		Date:        date,
		Time:        req.Time,
		Status:      model.AppointmentPending,
		Reason:      reason,
		PaymentMode: paymentMode,
		Paid:        paymentMode == model.PaymentOnline,
		Amount:      doctor.Fee(),
	}
	appt.CreatedBy = caller.auditID()
	appt.UpdatedBy = caller.auditID()
	appt.Version = 1

	if err := s.repo.Appointment.Create(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, ErrSlotConflict
		}
		s.logger.Error("failed to create appointment", zap.Error(err))
		return nil, err
	}

	appt.Patient = patient
	appt.Doctor = doctor
	appt.Specialty = specialty
	resp := toAppointmentResponse(appt)

	s.logger.Info("appointment booked",
		zap.String("cita_id", appt.AppointmentID),
		zap.String("medico_id", appt.DoctorID),
		zap.String("fecha", date.String()),
		zap.String("hora", appt.Time),
	)
	s.events.Dispatch(event.Event{
		Type:   event.AppointmentCreated,
		Key:    appt.AppointmentID,
		Topics: event.Topics(appt.SpecialtyID, appt.DoctorID, appt.PatientID),
		Data:   resp,
	})
	return resp, nil
}

// ────────────────────── patient views ──────────────────────

func (s *appointmentService) ListByPatient(ctx context.Context, patientID, status string, caller Caller) ([]dto.AppointmentResponse, error) {
	filter := repository.PatientAppointmentFilter{}
	if status != "" {
		filter.Statuses = []string{status}
	}
	return s.listForPatient(ctx, patientID, caller, filter)
}

func (s *appointmentService) Upcoming(ctx context.Context, patientID string, caller Caller) ([]dto.AppointmentResponse, error) {
	return s.listForPatient(ctx, patientID, caller, repository.PatientAppointmentFilter{
		Statuses: model.ActiveAppointmentStatuses,
		FromDate: s.clinic.today(),
	})
}

func (s *appointmentService) History(ctx context.Context, patientID string, caller Caller) ([]dto.AppointmentResponse, error) {
	return s.listForPatient(ctx, patientID, caller, repository.PatientAppointmentFilter{
		Statuses:   []string{model.AppointmentCompleted},
		Descending: true,
	})
}

func (s *appointmentService) listForPatient(ctx context.Context, patientID string, caller Caller, filter repository.PatientAppointmentFilter) ([]dto.AppointmentResponse, error) {
	if err := requireUUID("pacienteId", patientID); err != nil {
		return nil, err
	}
	if !caller.CanActFor(patientID) {
		return nil, ErrForbidden
	}

	patient, err := s.repo.User.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		s.logger.Error("failed to load patient", zap.String("paciente_id", patientID), zap.Error(err))
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, ErrPatientNotFound
	}

	list, err := s.repo.Appointment.ListByPatient(ctx, patientID, filter)
	if err != nil {
		s.logger.Error("failed to list appointments", zap.String("paciente_id", patientID), zap.Error(err))
		return nil, err
	}
	return toAppointmentResponses(list), nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *appointmentService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateAppointmentStatusRequest, caller Caller) (*dto.AppointmentResponse, error) {
	if err := requireUUID("citaId", id); err != nil {
		return nil, err
	}

	appt, err := s.repo.Appointment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		s.logger.Error("failed to load appointment", zap.String("cita_id", id), zap.Error(err))
		return nil, err
	}

	if !allowedTransition(appointmentTransitions, appt.Status, req.Status) {
		return nil, fmt.Errorf("%w: de %s a %s", ErrInvalidTransition, appt.Status, req.Status)
	}
	if req.Version != nil && *req.Version != appt.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	from := appt.Status
	appt.Status = req.Status
	if req.Status == model.AppointmentCompleted && appt.PaymentMode == model.PaymentCash {
		appt.Paid = true
	}
	appt.UpdatedBy = caller.auditID()

	if err := s.repo.Appointment.UpdateStatus(ctx, appt); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("failed to update appointment", zap.String("cita_id", id), zap.Error(err))
		return nil, err
	}

	resp := toAppointmentResponse(appt)
	s.logger.Info("appointment status changed",
		zap.String("cita_id", id), zap.String("from", from), zap.String("to", appt.Status))
	s.events.Dispatch(event.Event{
		Type:   event.AppointmentStatusChanged,
		Key:    appt.AppointmentID,
		Topics: event.Topics(appt.SpecialtyID, appt.DoctorID, appt.PatientID),
		Data:   resp,
	})
	return resp, nil
}

func allowedTransition(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
)

const icsProductID = "-//SmartFlow Medic//Citas//ES"

// InviteService renders appointments as iCalendar (RFC 5545) invites.
type InviteService interface {
	// Invite returns the .ics body of an appointment and a suggested
	// filename. Cancelled appointments produce a METHOD:CANCEL calendar.
	Invite(ctx context.Context, appointmentID string, caller Caller) ([]byte, string, error)
}

type inviteService struct {
	repo    *repository.Repository
	clinic  *Clinic
	baseURL string
	logger  *zap.Logger
}

// NewInviteService creates an InviteService. baseURL supplies the UID domain
// and the link back to the appointment.
func NewInviteService(repo *repository.Repository, clinic *Clinic, baseURL string, logger *zap.Logger) InviteService {
	return &inviteService{
		repo:    repo,
		clinic:  clinic,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (s *inviteService) Invite(ctx context.Context, appointmentID string, caller Caller) ([]byte, string, error) {
	if err := requireUUID("citaId", appointmentID); err != nil {
		return nil, "", err
	}
	a, err := s.repo.Appointment.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAppointmentNotFound
		}
		s.logger.Error("failed to load appointment", zap.String("cita_id", appointmentID), zap.Error(err))
		return nil, "", err
	}
	if !caller.CanActFor(a.PatientID) {
		return nil, "", ErrForbidden
	}

	start, err := s.clinic.slotStart(a.Date, a.Time)
	if err != nil {
		s.logger.Error("stored appointment has an unreadable slot",
			zap.String("cita_id", a.AppointmentID), zap.String("fecha", a.Date.String()), zap.String("hora", a.Time))
		return nil, "", fmt.Errorf("cita %s: %w", a.AppointmentID, err)
	}
	end := start.Add(time.Duration(s.clinic.SlotMinutes) * time.Minute)

	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)
	if a.Status == model.AppointmentCancelled {
		cal.SetMethod(ics.MethodCancel)
	} else {
		cal.SetMethod(ics.MethodRequest)
	}

	ev := cal.AddEvent(s.uid(a.AppointmentID))
	ev.SetCreatedTime(a.CreatedAt)
	ev.SetDtStampTime(a.UpdatedAt)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(inviteSummary(a))
	ev.SetDescription(inviteDescription(a))
	ev.SetStatus(inviteStatus(a.Status))
	if loc := s.location(); loc != "" {
		ev.SetLocation(loc)
	}
	if s.baseURL != "" {
		ev.SetURL(s.baseURL + "/api/mobile/citas/" + a.AppointmentID + "/ics")
	}
	if a.Patient != nil && a.Patient.Email != "" {
		ev.AddAttendee(a.Patient.Email)
	}
	if a.Doctor != nil && a.Doctor.Email != "" {
		ev.AddAttendee(a.Doctor.Email)
	}

	filename := fmt.Sprintf("cita_%s_%s.ics", a.Date, strings.ReplaceAll(a.Time, ":", ""))
	return []byte(cal.Serialize()), filename, nil
}

// uid is stable per appointment so calendar clients update in place.
func (s *inviteService) uid(appointmentID string) string {
	host := "smartflow"
	if u, err := url.Parse(s.baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return appointmentID + "@" + host
}

func (s *inviteService) location() string {
	switch {
	case s.clinic.Name != "" && s.clinic.Address != "":
		return s.clinic.Name + ", " + s.clinic.Address
	case s.clinic.Address != "":
		return s.clinic.Address
	default:
		return s.clinic.Name
	}
}

func inviteSummary(a *model.Appointment) string {
	specialty := fallbackSpecialtyName
	if a.Specialty != nil {
		specialty = a.Specialty.Name
	}
	if a.Doctor != nil {
		return fmt.Sprintf("Consulta de %s con %s", specialty, a.Doctor.FullName())
	}
	return "Consulta de " + specialty
}

func inviteDescription(a *model.Appointment) string {
	lines := []string{"Motivo: " + a.Reason}
	if a.Amount > 0 {
		lines = append(lines, fmt.Sprintf("Monto: %.2f (%s)", a.Amount, a.PaymentMode))
	}
	lines = append(lines, "Estado: "+a.Status)
	return strings.Join(lines, "\n")
}

func inviteStatus(status string) ics.ObjectStatus {
	switch status {
	case model.AppointmentPending:
		return ics.ObjectStatusTentative
	case model.AppointmentCancelled:
		return ics.ObjectStatusCancelled
	default:
		return ics.ObjectStatusConfirmed
	}
}

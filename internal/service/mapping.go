package service

import (
	"time"

	"go.uber.org/zap"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/slot"
)

// Labels used when a referenced doctor or specialty is missing.
const (
	fallbackSpecialtyName = "General"
	fallbackSpecialtyCode = "M"
)

const timestampLayout = time.RFC3339

func toSpecialtyResponse(s *model.Specialty) dto.SpecialtyResponse {
	if s == nil {
		return dto.SpecialtyResponse{Name: fallbackSpecialtyName, Code: fallbackSpecialtyCode}
	}
	return dto.SpecialtyResponse{
		ID:          s.SpecialtyID,
		Name:        s.Name,
		Code:        s.Code,
		Description: s.Description,
	}
}

func toSpecialtyResponses(list []model.Specialty) []dto.SpecialtyResponse {
	out := make([]dto.SpecialtyResponse, 0, len(list))
	for i := range list {
		out = append(out, toSpecialtyResponse(&list[i]))
	}
	return out
}

func toDoctorResponse(u *model.User) dto.DoctorResponse {
	windows := make([]dto.WindowResponse, 0, len(u.Availability))
	for _, a := range u.Availability {
		windows = append(windows, dto.WindowResponse{
			Day:   slot.DayName(a.Weekday),
			Start: a.StartTime,
			End:   a.EndTime,
		})
	}
	return dto.DoctorResponse{
		ID:        u.UserID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Photo:     u.Photo,
		Email:     u.Email,
		Info: dto.DoctorInfo{
			Specialties:     toSpecialtyResponses(u.Specialties),
			ConsultationFee: u.Fee(),
			Availability:    windows,
		},
	}
}

func toDoctorSummary(u *model.User) dto.DoctorSummary {
	return dto.DoctorSummary{
		ID:          u.UserID,
		Name:        u.FullName(),
		Photo:       u.Photo,
		Specialties: toSpecialtyResponses(u.Specialties),
	}
}

func toAppointmentResponse(a *model.Appointment) *dto.AppointmentResponse {
	resp := &dto.AppointmentResponse{
		ID:          a.AppointmentID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		SpecialtyID: a.SpecialtyID,
		Date:        a.Date.String(),
		Time:        a.Time,
		Status:      a.Status,
		Reason:      a.Reason,
		Amount:      a.Amount,
		Paid:        a.Paid,
		PaymentMode: a.PaymentMode,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt.UTC().Format(timestampLayout),
	}
	if d := a.Doctor; d != nil {
		resp.Doctor = &dto.AppointmentDoctor{
			ID:              d.UserID,
			FirstName:       d.FirstName,
			LastName:        d.LastName,
			Photo:           d.Photo,
			Specialties:     toSpecialtyResponses(d.Specialties),
			ConsultationFee: d.Fee(),
		}
	}
	if p := a.Patient; p != nil {
		resp.Patient = &dto.PatientSummary{
			ID:        p.UserID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Photo:     p.Photo,
		}
	}
	if a.Specialty != nil {
		s := toSpecialtyResponse(a.Specialty)
		resp.Specialty = &s
	}
	return resp
}

func toAppointmentResponses(list []model.Appointment) []dto.AppointmentResponse {
	out := make([]dto.AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, *toAppointmentResponse(&list[i]))
	}
	return out
}

// queuePosition is the live place of an entry in its line.
type queuePosition struct {
	ahead    int
	position int // 0 once the entry is being served or closed
	eta      int // minutes
}

func waitingPosition(ahead, turnMinutes int) queuePosition {
	return queuePosition{ahead: ahead, position: ahead + 1, eta: ahead * turnMinutes}
}

func toQueueEntryResponse(e *model.QueueEntry, pos queuePosition) *dto.QueueEntryResponse {
	resp := &dto.QueueEntryResponse{
		ID:              e.EntryID,
		PatientID:       e.PatientID,
		Specialty:       toSpecialtyResponse(e.Specialty),
		Date:            e.Date.String(),
		Label:           e.Label,
		Number:          e.Number,
		InitialPosition: e.InitialPosition,
		Position:        pos.position,
		Ahead:           pos.ahead,
		EstimatedMin:    pos.eta,
		Status:          e.Status,
		Virtual:         true,
		Reason:          e.Reason,
		ArrivedAt:       e.ArrivedAt.UTC().Format(timestampLayout),
		CalledAt:        formatOptional(e.CalledAt),
		ServedAt:        formatOptional(e.ServedAt),
		CompletedAt:     formatOptional(e.CompletedAt),
		Version:         e.Version,
	}
	if e.Specialty == nil {
		resp.Specialty.ID = e.SpecialtyID
	}
	if d := e.Doctor; d != nil {
		resp.Doctor = &dto.QueueDoctor{
			ID:        d.UserID,
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Photo:     d.Photo,
		}
	}
	return resp
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timestampLayout)
	return &s
}

// windowsOf converts stored availability rows, skipping malformed ones.
func windowsOf(u *model.User, logger *zap.Logger) []slot.Window {
	windows := make([]slot.Window, 0, len(u.Availability))
	for _, a := range u.Availability {
		w := slot.Window{Weekday: a.Weekday, Start: a.StartTime, End: a.EndTime}
		if !w.Valid() {
			logger.Warn("skipping malformed availability window",
				zap.String("medico_id", u.UserID),
				zap.String("dia", slot.DayName(a.Weekday)),
				zap.String("hora_inicio", a.StartTime),
				zap.String("hora_fin", a.EndTime),
			)
			continue
		}
		windows = append(windows, w)
	}
	return windows
}

package service

import (
	"context"

	"go.uber.org/zap"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
)

// BoardService builds the day board shown at the reception desk.
type BoardService interface {
	// TodayAppointments groups today's non-cancelled appointments by start
	// time, earliest first. Patients see only their own name and photo.
	TodayAppointments(ctx context.Context, req *dto.TodayAppointmentsRequest, caller Caller) (*dto.TodayBoard, error)
}

type boardService struct {
	repo   *repository.Repository
	clinic *Clinic
	logger *zap.Logger
}

// NewBoardService creates a BoardService.
func NewBoardService(repo *repository.Repository, clinic *Clinic, logger *zap.Logger) BoardService {
	return &boardService{repo: repo, clinic: clinic, logger: logger}
}

var boardStatuses = []string{
	model.AppointmentPending,
	model.AppointmentConfirmed,
	model.AppointmentCompleted,
}

func (s *boardService) TodayAppointments(ctx context.Context, req *dto.TodayAppointmentsRequest, caller Caller) (*dto.TodayBoard, error) {
	if err := optionalUUID("especialidadId", req.SpecialtyID); err != nil {
		return nil, err
	}
	if err := optionalUUID("medicoId", req.DoctorID); err != nil {
		return nil, err
	}

	today := s.clinic.today()
	list, err := s.repo.Appointment.ListByDate(ctx, today, repository.AppointmentFilter{
		SpecialtyID: req.SpecialtyID,
		DoctorID:    req.DoctorID,
		Statuses:    boardStatuses,
	})
	if err != nil {
		s.logger.Error("failed to list today's appointments", zap.Error(err))
		return nil, err
	}

	board := &dto.TodayBoard{
		Date:   today.String(),
		Total:  len(list),
		Groups: groupByHour(list),
	}
	hideOtherPatients(board.Groups, caller)
	return board, nil
}

func hideOtherPatients(groups []dto.HourGroup, caller Caller) {
	for i := range groups {
		for j := range groups[i].Appointments {
			p := &groups[i].Appointments[j].Patient
			if !caller.CanActFor(p.ID) {
				p.Name, p.Photo = "", ""
			}
		}
	}
}

// groupByHour expects list ordered by hora.
func groupByHour(list []model.Appointment) []dto.HourGroup {
	groups := make([]dto.HourGroup, 0)
	for i := range list {
		a := &list[i]
		if n := len(groups); n == 0 || groups[n-1].Time != a.Time {
			groups = append(groups, dto.HourGroup{Time: a.Time})
		}
		last := &groups[len(groups)-1]
		last.Appointments = append(last.Appointments, toBoardAppointment(a))
	}
	return groups
}

func toBoardAppointment(a *model.Appointment) dto.BoardAppointment {
	item := dto.BoardAppointment{
		ID:     a.AppointmentID,
		Time:   a.Time,
		Status: a.Status,
		Reason: a.Reason,
		Doctor: dto.BoardDoctor{
			ID:            a.DoctorID,
			Specialty:     fallbackSpecialtyName,
			SpecialtyCode: fallbackSpecialtyCode,
		},
		Patient: dto.BoardPatient{ID: a.PatientID},
	}
	if d := a.Doctor; d != nil {
		item.Doctor.Name = d.FullName()
		item.Doctor.Photo = d.Photo
	}
	if sp := a.Specialty; sp != nil {
		item.Doctor.Specialty = sp.Name
		item.Doctor.SpecialtyCode = sp.Code
	}
	if p := a.Patient; p != nil {
		item.Patient.Name = p.FullName()
		item.Patient.Photo = p.Photo
	}
	return item
}

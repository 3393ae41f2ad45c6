package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"smartflow/backend/config"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
	"smartflow/backend/internal/repository"
)

// Service aggregates every business service.
type Service struct {
	Availability AvailabilityService
	Appointment  AppointmentService
	Queue        QueueService
	Board        BoardService
	Directory    DirectoryService
	Export       ExportService
	Invite       InviteService
}

// NewService wires the services over one repository aggregate.
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	clinic *Clinic,
	events *event.Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		Availability: NewAvailabilityService(repo, clinic, logger),
		Appointment:  NewAppointmentService(repo, clinic, events, logger),
		Queue:        NewQueueService(repo, clinic, events, logger),
		Board:        NewBoardService(repo, clinic, logger),
		Directory:    NewDirectoryService(repo, logger),
		Export:       NewExportService(repo, clinic, logger),
		Invite:       NewInviteService(repo, clinic, cfg.Server.BaseURL, logger),
	}
}

// ── shared business errors ──

var (
	ErrValidation        = errors.New("Datos inválidos")
	ErrPatientNotFound   = errors.New("Paciente no encontrado")
	ErrDoctorNotFound    = errors.New("Médico no encontrado")
	ErrSpecialtyNotFound = errors.New("Especialidad no encontrada")
	ErrForbidden         = errors.New("No puedes actuar en nombre de otro paciente")
)

// ── caller ──

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID string
	Role   string
}

// CanActFor reports whether the caller may read or act on patientID's data.
// Patients are limited to themselves; staff act for anyone.
func (c Caller) CanActFor(patientID string) bool {
	return c.Role != model.RolePatient || c.UserID == patientID
}

func (c Caller) auditID() *string {
	if c.UserID == "" {
		return nil
	}
	id := c.UserID
	return &id
}

// ── input helpers ──

func requireUUID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("%w: %s debe ser un identificador válido", ErrValidation, field)
	}
	return nil
}

func optionalUUID(field, value string) error {
	if value == "" {
		return nil
	}
	return requireUUID(field, value)
}

func trimmed(s string) string { return strings.TrimSpace(s) }

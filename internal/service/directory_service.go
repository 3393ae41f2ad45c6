package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/repository"
)

// DirectoryService reads specialties and doctor profiles.
type DirectoryService interface {
	ListSpecialties(ctx context.Context, includeInactive bool) ([]dto.SpecialtyResponse, error)
	// ListDoctors lists active doctors, optionally of one specialty.
	ListDoctors(ctx context.Context, specialtyID string) ([]dto.DoctorResponse, error)
	GetDoctor(ctx context.Context, doctorID string) (*dto.DoctorResponse, error)
}

type directoryService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(repo *repository.Repository, logger *zap.Logger) DirectoryService {
	return &directoryService{repo: repo, logger: logger}
}

func (s *directoryService) ListSpecialties(ctx context.Context, includeInactive bool) ([]dto.SpecialtyResponse, error) {
	list, err := s.repo.Specialty.List(ctx, includeInactive)
	if err != nil {
		s.logger.Error("failed to list specialties", zap.Error(err))
		return nil, err
	}
	return toSpecialtyResponses(list), nil
}

func (s *directoryService) ListDoctors(ctx context.Context, specialtyID string) ([]dto.DoctorResponse, error) {
	if err := optionalUUID("especialidadId", specialtyID); err != nil {
		return nil, err
	}
	if specialtyID != "" {
		if _, err := s.repo.Specialty.GetByID(ctx, specialtyID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSpecialtyNotFound
			}
			s.logger.Error("failed to load specialty", zap.String("especialidad_id", specialtyID), zap.Error(err))
			return nil, err
		}
	}

	doctors, err := s.repo.User.ListDoctors(ctx, repository.DoctorFilter{SpecialtyID: specialtyID})
	if err != nil {
		s.logger.Error("failed to list doctors", zap.Error(err))
		return nil, err
	}
	out := make([]dto.DoctorResponse, 0, len(doctors))
	for i := range doctors {
		out = append(out, toDoctorResponse(&doctors[i]))
	}
	return out, nil
}

func (s *directoryService) GetDoctor(ctx context.Context, doctorID string) (*dto.DoctorResponse, error) {
	if err := requireUUID("medicoId", doctorID); err != nil {
		return nil, err
	}
	u, err := s.repo.User.GetByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDoctorNotFound
		}
		s.logger.Error("failed to load doctor", zap.String("medico_id", doctorID), zap.Error(err))
		return nil, err
	}
	if !u.IsDoctor() {
		return nil, ErrDoctorNotFound
	}
	resp := toDoctorResponse(u)
	return &resp, nil
}

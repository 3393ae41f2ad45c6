package handler

import (
	"github.com/gin-gonic/gin"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/service"
	"smartflow/backend/pkg/response"
)

// DirectoryHandler specialties and doctors.
type DirectoryHandler struct {
	directorySvc service.DirectoryService
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(directorySvc service.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directorySvc: directorySvc}
}

// ListSpecialties
// GET /api/mobile/especialidades?incluirInactivas=true
func (h *DirectoryHandler) ListSpecialties(c *gin.Context) {
	var req dto.SpecialtyListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.directorySvc.ListSpecialties(c.Request.Context(), req.IncludeInactive)
	if err != nil {
		h.handleDirectoryError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// ListDoctors
// GET /api/mobile/medicos?especialidadId=xxx
func (h *DirectoryHandler) ListDoctors(c *gin.Context) {
	var req dto.DoctorListRequest
	if !bindQuery(c, &req) {
		return
	}
	h.listDoctors(c, req.SpecialtyID)
}

// ListDoctorsBySpecialty
// GET /api/mobile/medicos/especialidad/:especialidadId
func (h *DirectoryHandler) ListDoctorsBySpecialty(c *gin.Context) {
	h.listDoctors(c, c.Param("especialidadId"))
}

func (h *DirectoryHandler) listDoctors(c *gin.Context, specialtyID string) {
	list, err := h.directorySvc.ListDoctors(c.Request.Context(), specialtyID)
	if err != nil {
		h.handleDirectoryError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// GetDoctor
// GET /api/mobile/medicos/:medicoId
func (h *DirectoryHandler) GetDoctor(c *gin.Context) {
	doctor, err := h.directorySvc.GetDoctor(c.Request.Context(), c.Param("medicoId"))
	if err != nil {
		h.handleDirectoryError(c, err)
		return
	}

	response.OK(c, doctor)
}

func (h *DirectoryHandler) handleDirectoryError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c, err)
}

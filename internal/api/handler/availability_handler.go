package handler

import (
	"github.com/gin-gonic/gin"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/service"
	"smartflow/backend/pkg/response"
)

// AvailabilityHandler free slots of doctors.
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler creates an AvailabilityHandler.
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// DoctorAvailability free slots per day for the next days.
// GET /api/mobile/medicos/:medicoId/disponibilidad?dias=15&desde=
func (h *AvailabilityHandler) DoctorAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if !bindQuery(c, &req) {
		return
	}

	days, err := h.availabilitySvc.DoctorAvailability(c.Request.Context(), c.Param("medicoId"), req.From, req.Days)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, days)
}

// TodayOpenings free slots left today per doctor and window.
// GET /api/mobile/turnos/horarios-disponibles?especialidadId=&medicoId=
func (h *AvailabilityHandler) TodayOpenings(c *gin.Context) {
	var req dto.TodayOpeningsRequest
	if !bindQuery(c, &req) {
		return
	}

	res, err := h.availabilitySvc.TodayOpenings(c.Request.Context(), &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OKFields(c, gin.H{"fecha": res.Date, "dia": res.Weekday, "count": len(res.Items)}, res.Items)
}

func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	response.InternalError(c, err)
}

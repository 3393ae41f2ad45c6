package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/service"
	pkgerrors "smartflow/backend/pkg/errors"
	"smartflow/backend/pkg/response"
)

// AppointmentHandler booking, patient agendas, the day board and invites.
type AppointmentHandler struct {
	apptSvc   service.AppointmentService
	boardSvc  service.BoardService
	inviteSvc service.InviteService
}

// NewAppointmentHandler creates an AppointmentHandler.
func NewAppointmentHandler(apptSvc service.AppointmentService, boardSvc service.BoardService, inviteSvc service.InviteService) *AppointmentHandler {
	return &AppointmentHandler{apptSvc: apptSvc, boardSvc: boardSvc, inviteSvc: inviteSvc}
}

// ────────────────────── Booking ──────────────────────

// Book
// POST /api/mobile/citas/crear
func (h *AppointmentHandler) Book(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.BookAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	appt, err := h.apptSvc.Book(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.Created(c, "Cita creada exitosamente", appt)
}

// ────────────────────── Board ──────────────────────

// Today appointments of the day grouped by hour.
// GET /api/mobile/citas/hoy?especialidadId=&medicoId=
func (h *AppointmentHandler) Today(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.TodayAppointmentsRequest
	if !bindQuery(c, &req) {
		return
	}

	board, err := h.boardSvc.TodayAppointments(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.OKFields(c, gin.H{"fecha": board.Date, "totalCitas": board.Total}, board.Groups)
}

// ────────────────────── Patient agenda ──────────────────────

// ListByPatient
// GET /api/mobile/citas/paciente/:pacienteId?estado=
func (h *AppointmentHandler) ListByPatient(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.PatientAppointmentsRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.apptSvc.ListByPatient(c.Request.Context(), c.Param("pacienteId"), req.Status, caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// Upcoming
// GET /api/mobile/citas/paciente/:pacienteId/proximas
func (h *AppointmentHandler) Upcoming(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.apptSvc.Upcoming(c.Request.Context(), c.Param("pacienteId"), caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// History
// GET /api/mobile/citas/paciente/:pacienteId/historial
func (h *AppointmentHandler) History(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	list, err := h.apptSvc.History(c.Request.Context(), c.Param("pacienteId"), caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.OKList(c, list, len(list))
}

// ────────────────────── Status ──────────────────────

// UpdateStatus
// PATCH /api/mobile/citas/:citaId/estado
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateAppointmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	appt, err := h.apptSvc.UpdateStatus(c.Request.Context(), c.Param("citaId"), &req, caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	response.OKMessage(c, "Estado de la cita actualizado", appt)
}

// ────────────────────── Invite ──────────────────────

// Invite downloads the appointment as an iCalendar file.
// GET /api/mobile/citas/:citaId/ics
func (h *AppointmentHandler) Invite(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	body, filename, err := h.inviteSvc.Invite(c.Request.Context(), c.Param("citaId"), caller)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

func (h *AppointmentHandler) handleAppointmentError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidSpecialty):
		response.BadRequest(c, 21001, service.ErrInvalidSpecialty.Error())
	case errors.Is(err, service.ErrPastDate):
		response.BadRequest(c, 21002, service.ErrPastDate.Error())
	case errors.Is(err, service.ErrOutsideWorkingHours):
		response.BadRequest(c, 21003, err.Error())
	case errors.Is(err, service.ErrSlotConflict):
		response.Conflict(c, 21004, service.ErrSlotConflict.Error()+", elige otro horario")
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 21005, service.ErrAppointmentNotFound.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 21006, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21007, pkgerrors.ErrOptimisticLock.Error())
	default:
		response.InternalError(c, err)
	}
}

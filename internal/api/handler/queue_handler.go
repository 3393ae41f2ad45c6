package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"smartflow/backend/internal/dto"
	"smartflow/backend/internal/service"
	pkgerrors "smartflow/backend/pkg/errors"
	"smartflow/backend/pkg/response"
)

// QueueHandler the virtual walk-in queue.
type QueueHandler struct {
	queueSvc service.QueueService
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(queueSvc service.QueueService) *QueueHandler {
	return &QueueHandler{queueSvc: queueSvc}
}

// Join issues the next turn of a specialty.
// POST /api/mobile/turnos/tomar
func (h *QueueHandler) Join(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.JoinQueueRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.queueSvc.Join(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.Created(c, "Turno asignado exitosamente", entry)
}

// Summary live load of every specialty today.
// GET /api/mobile/turnos/resumen/hoy
func (h *QueueHandler) Summary(c *gin.Context) {
	items, err := h.queueSvc.Summary(c.Request.Context(), "")
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.OKList(c, items, len(items))
}

// MyActive the patient's active turn of today; data is null when there is none.
// GET /api/mobile/turnos/paciente/:pacienteId/activo?especialidadId=
func (h *QueueHandler) MyActive(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ActiveEntryRequest
	if !bindQuery(c, &req) {
		return
	}

	entry, err := h.queueSvc.MyActive(c.Request.Context(), c.Param("pacienteId"), req.SpecialtyID, caller)
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.OK(c, entry)
}

// Cancel
// DELETE /api/mobile/turnos/:turnoId
func (h *QueueHandler) Cancel(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	entry, err := h.queueSvc.Cancel(c.Request.Context(), c.Param("turnoId"), caller)
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.OKMessage(c, "Turno cancelado", entry)
}

// DayQueue entries of one specialty day with statistics.
// GET /api/mobile/turnos/especialidad/:especialidadId?fecha=YYYY-MM-DD
func (h *QueueHandler) DayQueue(c *gin.Context) {
	var req dto.DayQueueRequest
	if !bindQuery(c, &req) {
		return
	}

	res, err := h.queueSvc.DayQueue(c.Request.Context(), c.Param("especialidadId"), req.Date)
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.OKFields(c, gin.H{
		"fecha":        res.Date,
		"estadisticas": res.Stats,
		"count":        len(res.Entries),
	}, res.Entries)
}

// UpdateStatus
// PATCH /api/mobile/turnos/:turnoId/estado
func (h *QueueHandler) UpdateStatus(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateQueueStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.queueSvc.UpdateStatus(c.Request.Context(), c.Param("turnoId"), &req, caller)
	if err != nil {
		h.handleQueueError(c, err)
		return
	}

	response.OKMessage(c, "Estado del turno actualizado", entry)
}

func (h *QueueHandler) handleQueueError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrDuplicateQueue):
		response.BadRequest(c, 22001, service.ErrDuplicateQueue.Error())
	case errors.Is(err, service.ErrQueueContention):
		response.Conflict(c, 22002, service.ErrQueueContention.Error())
	case errors.Is(err, service.ErrNoDoctorAvailable):
		response.NotFound(c, 22003, service.ErrNoDoctorAvailable.Error())
	case errors.Is(err, service.ErrQueueEntryNotFound):
		response.NotFound(c, 22004, service.ErrQueueEntryNotFound.Error())
	case errors.Is(err, service.ErrQueueEntryClosed):
		response.BadRequest(c, 22005, service.ErrQueueEntryClosed.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		response.BadRequest(c, 22006, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 22007, pkgerrors.ErrOptimisticLock.Error())
	default:
		response.InternalError(c, err)
	}
}

package handler

import (
	"go.uber.org/zap"

	"smartflow/backend/internal/event"
	"smartflow/backend/internal/service"
)

// Handler aggregates every HTTP handler.
type Handler struct {
	Directory    *DirectoryHandler
	Availability *AvailabilityHandler
	Appointment  *AppointmentHandler
	Queue        *QueueHandler
	Export       *ExportHandler
	Live         *LiveHandler
}

// NewHandler builds the handlers over the service aggregate. hub may be nil,
// in which case the websocket endpoint answers 503.
func NewHandler(svc *service.Service, hub *event.Hub, allowOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		Directory:    NewDirectoryHandler(svc.Directory),
		Availability: NewAvailabilityHandler(svc.Availability),
		Appointment:  NewAppointmentHandler(svc.Appointment, svc.Board, svc.Invite),
		Queue:        NewQueueHandler(svc.Queue),
		Export:       NewExportHandler(svc.Export),
		Live:         NewLiveHandler(hub, allowOrigins, logger),
	}
}

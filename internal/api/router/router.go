package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartflow/backend/config"
	"smartflow/backend/internal/api/handler"
	"smartflow/backend/internal/api/middleware"
	"smartflow/backend/internal/model"
	"smartflow/backend/pkg/redis"
)

// Setup builds the gin engine. rdb may be nil; revocation checks and rate
// limiting are then skipped.
func Setup(cfg *config.Config, h *handler.Handler, parser middleware.TokenParser, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// keep the interfaces nil when redis is off
	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist, limiter = rdb, rdb
	}

	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitBytes))

	// ── health ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	staff := middleware.RoleAuth(model.RoleDoctor, model.RoleAdmin)
	writeLimit := middleware.RateLimit(limiter, cfg.RateLimit.BookingLimit, cfg.RateLimit.BookingWindow, logger)

	api := r.Group("/api/mobile")
	api.Use(middleware.JWTAuth(parser, blacklist, logger))
	{
		// directory
		api.GET("/especialidades", h.Directory.ListSpecialties)

		medicos := api.Group("/medicos")
		{
			medicos.GET("", h.Directory.ListDoctors)
			medicos.GET("/especialidad/:especialidadId", h.Directory.ListDoctorsBySpecialty)
			medicos.GET("/:medicoId", h.Directory.GetDoctor)
			medicos.GET("/:medicoId/disponibilidad", h.Availability.DoctorAvailability)
		}

		// appointments
		citas := api.Group("/citas")
		{
			citas.POST("/crear", writeLimit, h.Appointment.Book)
			citas.GET("/hoy", h.Appointment.Today)
			citas.GET("/hoy/export", staff, h.Export.ExportToday)
			citas.GET("/paciente/:pacienteId", h.Appointment.ListByPatient)
			citas.GET("/paciente/:pacienteId/proximas", h.Appointment.Upcoming)
			citas.GET("/paciente/:pacienteId/historial", h.Appointment.History)
			citas.PATCH("/:citaId/estado", staff, h.Appointment.UpdateStatus)
			citas.GET("/:citaId/ics", h.Appointment.Invite)
		}

		// virtual queue
		turnos := api.Group("/turnos")
		{
			turnos.POST("/tomar", writeLimit, h.Queue.Join)
			turnos.GET("/resumen/hoy", h.Queue.Summary)
			turnos.GET("/horarios-disponibles", h.Availability.TodayOpenings)
			turnos.GET("/paciente/:pacienteId/activo", h.Queue.MyActive)
			turnos.GET("/especialidad/:especialidadId", h.Queue.DayQueue)
			turnos.DELETE("/:turnoId", h.Queue.Cancel)
			turnos.PATCH("/:turnoId/estado", staff, h.Queue.UpdateStatus)
		}

		// live updates
		api.GET("/ws", h.Live.Serve)
	}

	return r
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smartflow/backend/internal/api/middleware"
	"smartflow/backend/internal/event"
	"smartflow/backend/internal/model"
	"smartflow/backend/pkg/response"
)

// LiveHandler upgrades authenticated clients to the websocket event feed.
type LiveHandler struct {
	hub      *event.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewLiveHandler creates a LiveHandler. Browser origins must be in
// allowOrigins; native clients that send no Origin are accepted.
func NewLiveHandler(hub *event.Hub, allowOrigins []string, logger *zap.Logger) *LiveHandler {
	allowed := middleware.OriginSet(allowOrigins)
	return &LiveHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[strings.TrimRight(origin, "/")]
			},
		},
	}
}

// Serve streams events of the requested topics until the client leaves.
// GET /api/mobile/ws?topics=especialidad:<id>,paciente:<id>
func (h *LiveHandler) Serve(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.Error(c, http.StatusServiceUnavailable, 50301, "Las actualizaciones en vivo no están disponibles")
		return
	}

	allow := topicFilter(caller.UserID, caller.Role)
	topics := parseTopics(c.Query("topics"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.ServeFiltered(conn, topics, allow)
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// topicFilter limits patients to their own feed and to specialty feeds.
// Staff may follow anything.
func topicFilter(userID, role string) event.TopicFilter {
	if role != model.RolePatient {
		return nil
	}
	own := event.PatientTopic(userID)
	return func(topic string) bool {
		return topic == own || strings.HasPrefix(topic, event.SpecialtyTopic(""))
	}
}

package response

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code,omitempty"` // business error code, 0 on success
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"` // internal cause, debug mode only
}

var debug atomic.Bool

// SetDebug toggles exposure of internal error causes in the error field.
func SetDebug(on bool) { debug.Store(on) }

// ── success ──

// OK 200 with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// OKMessage 200 with a message and data.
func OKMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// Created 201 with a message and the created resource.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

// OKList 200 with {success, count, data}.
func OKList(c *gin.Context, data interface{}, count int) {
	OKFields(c, gin.H{"count": count}, data)
}

// OKFields 200 with data plus extra top-level fields, e.g. {fecha, totalCitas}.
func OKFields(c *gin.Context, fields gin.H, data interface{}) {
	body := gin.H{"success": true, "data": data}
	for k, v := range fields {
		if k == "success" || k == "data" {
			continue
		}
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// ── errors ──

// Error writes a failure envelope.
func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{Success: false, Code: code, Message: message})
}

// ErrorWithCause writes a failure envelope and, in debug mode, the cause.
func ErrorWithCause(c *gin.Context, httpStatus int, code int, message string, cause error) {
	resp := Response{Success: false, Code: code, Message: message}
	if cause != nil && debug.Load() {
		resp.Error = cause.Error()
	}
	c.JSON(httpStatus, resp)
}

// ── shortcuts ──

// BadRequest 400
func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

// NotFound 404
func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

// Conflict 409
func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// InternalError 500 with a generic message. The cause is logged by the
// request logger through c.Error and only echoed back in debug mode.
func InternalError(c *gin.Context, cause error) {
	if cause != nil {
		_ = c.Error(cause)
	}
	ErrorWithCause(c, http.StatusInternalServerError, 50000, "Error interno del servidor", cause)
}

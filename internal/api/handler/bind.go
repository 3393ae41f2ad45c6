package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartflow/backend/internal/service"
	"smartflow/backend/pkg/response"
)

const msgInvalidParams = "Parámetros inválidos"

// bindJSON decodes and validates the body. It writes 413 when the body went
// over the BodyLimit cap and 400 for anything else.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "El cuerpo de la solicitud es demasiado grande")
			return false
		}
		response.ErrorWithCause(c, http.StatusBadRequest, 10001, msgInvalidParams, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		response.ErrorWithCause(c, http.StatusBadRequest, 10001, msgInvalidParams, err)
		return false
	}
	return true
}

// handleCommonError maps the errors shared by every module. It reports
// false when err is none of them.
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 10003, service.ErrForbidden.Error())
	case errors.Is(err, service.ErrPatientNotFound):
		response.NotFound(c, 20001, service.ErrPatientNotFound.Error())
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 20002, service.ErrDoctorNotFound.Error())
	case errors.Is(err, service.ErrSpecialtyNotFound):
		response.NotFound(c, 20003, service.ErrSpecialtyNotFound.Error())
	default:
		return false
	}
	return true
}

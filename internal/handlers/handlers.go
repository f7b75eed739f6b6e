// Package handlers maps HTTP requests onto the service layer and service
// errors onto status codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kartis/internal/apperrors"
	"kartis/internal/logger"
	"kartis/internal/service"
)

type Handlers struct {
	services *service.Services
}

func New(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// respondError translates service errors into HTTP status codes. Unknown
// errors become opaque 500s; their detail goes to the log, not the client.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, apperrors.ErrInvalidToken):
		status = http.StatusUnauthorized
		message = "invalid or expired token"
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, apperrors.ErrDuplicate):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, apperrors.ErrAlreadyCancelled):
		status = http.StatusConflict
		message = "registration is already cancelled"
	case errors.Is(err, apperrors.ErrDeadlineExceeded):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, apperrors.ErrRetryableConflict):
		status = http.StatusServiceUnavailable
		message = "high load, please retry"
	default:
		logger.WithContext(c.Request.Context()).Error("Unhandled error",
			"path", c.Request.URL.Path, "error", err)
	}

	c.JSON(status, gin.H{"error": message})
}

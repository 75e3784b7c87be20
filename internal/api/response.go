package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"alcyxob/coach-scheduler/internal/service"
)

// respondWithServiceError maps the service error taxonomy onto HTTP statuses.
// Upstream failures were already logged with their context by the service, so the
// caller only gets a generic message.
func respondWithServiceError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, "You do not have access to this resource")
	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, clientMessage(err))
	default:
		abortWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// clientMessage is the error text with its taxonomy prefix removed.
func clientMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{service.ErrValidation, service.ErrNotFound} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

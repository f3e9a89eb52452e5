package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	State   string      `json:"state,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrStructuralViolation), errors.Is(err, apperr.ErrValidationFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidTransition),
		errors.Is(err, apperr.ErrAutomationFailure),
		errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrLockedState):
		return http.StatusLocked
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with the status for its kind
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := Response{
		Success: false,
		Error:   err.Error(),
		Kind:    apperr.KindName(err),
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		resp.State = appErr.State
		resp.Details = appErr.Details
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		resp.Error = "internal error"
	}

	_ = c.Error(err)
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/project-billing/internal/application/port"
	"github.com/garyjia/project-billing/internal/application/service"
	"github.com/garyjia/project-billing/internal/domain/approval"
	"github.com/garyjia/project-billing/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Error codes returned in Response.Code
const (
	CodeBadRequest        = "bad_request"
	CodeUnauthenticated   = "unauthenticated"
	CodeValidation        = "validation_failed"
	CodeNotAuthorized     = "not_authorized"
	CodeNotFound          = "not_found"
	CodeConflict          = "version_conflict"
	CodeDuplicate         = "duplicate"
	CodeInvalidTransition = "invalid_transition"
	CodeNotPending        = "not_pending_approval"
	CodeWrongRecordType   = "wrong_record_type"
	CodeInternal          = "internal_error"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// writeError maps a service error onto its status code and envelope
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, code, details := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		message = "internal server error"
	}
	respondError(c, status, code, message, details)
}

func classify(err error) (int, string, interface{}) {
	var (
		validationErr *service.ValidationError
		transitionErr *workflow.InvalidTransitionError
		authErr       *approval.NotAuthorizedError
		pendingErr    *service.NotPendingApprovalError
		typeErr       *service.WrongRecordTypeError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, CodeValidation, gin.H{
			"field":  validationErr.Field,
			"reason": validationErr.Reason,
		}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, CodeValidation, nil
	case errors.As(err, &authErr):
		return http.StatusForbidden, CodeNotAuthorized, gin.H{
			"step":             authErr.Step,
			"expected_user_id": authErr.ExpectedUserID,
		}
	case errors.Is(err, approval.ErrNotAuthorized):
		return http.StatusForbidden, CodeNotAuthorized, nil
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, nil
	case errors.Is(err, port.ErrConflict):
		return http.StatusConflict, CodeConflict, nil
	case errors.Is(err, port.ErrDuplicate):
		return http.StatusConflict, CodeDuplicate, nil
	case errors.As(err, &transitionErr):
		return http.StatusUnprocessableEntity, CodeInvalidTransition, gin.H{
			"from":    transitionErr.From,
			"to":      transitionErr.To,
			"allowed": transitionErr.Allowed,
		}
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, CodeInvalidTransition, nil
	case errors.As(err, &pendingErr):
		return http.StatusUnprocessableEntity, CodeNotPending, gin.H{"status": pendingErr.Status}
	case errors.As(err, &typeErr):
		return http.StatusUnprocessableEntity, CodeWrongRecordType, gin.H{
			"expected": typeErr.Expected,
			"actual":   typeErr.Actual,
		}
	default:
		return http.StatusInternalServerError, CodeInternal, nil
	}
}

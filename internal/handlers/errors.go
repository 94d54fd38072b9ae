package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/gin-gonic/gin"
)

// handleServiceError maps service errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var expired *services.DeadlineExpiredError
	if errors.As(err, &expired) {
		h.RespondWithError(c, http.StatusConflict, ErrorResponse{
			Message: "Deadline passed, the attempt has been submitted",
			Details: expired.Result,
			Code:    "deadline_expired",
		}, err)
		return
	}

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation_failed",
		}, err)
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		h.RespondWithError(c, http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: services.ValidationErrors{*validationError},
			Code:    "validation_failed",
		}, err)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		h.RespondWithError(c, http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
			Code: "business_rule",
		}, err)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
			Code: "forbidden",
		}, err)
		return
	}

	status, resp := mapSentinel(err)
	h.RespondWithError(c, status, resp, err)
}

func mapSentinel(err error) (int, ErrorResponse) {
	switch {
	// Session errors
	case errors.Is(err, services.ErrInvalidSessionToken):
		return http.StatusUnauthorized, ErrorResponse{Message: "Invalid or superseded session token", Code: "invalid_session_token"}
	case errors.Is(err, services.ErrAttemptAlreadyCompleted):
		return http.StatusConflict, ErrorResponse{Message: "Attempt already completed", Code: "attempt_already_completed"}
	case errors.Is(err, services.ErrUnknownQuestion):
		return http.StatusUnprocessableEntity, ErrorResponse{Message: "Question does not belong to the exam", Code: "unknown_question"}

	// Exam errors
	case errors.Is(err, services.ErrExamNotPublished):
		return http.StatusForbidden, ErrorResponse{Message: "Exam is not published", Code: "exam_not_published"}
	case errors.Is(err, services.ErrExamNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Exam not found", Code: "exam_not_found"}
	case errors.Is(err, services.ErrAttemptNotFound):
		return http.StatusNotFound, ErrorResponse{Message: "Attempt not found", Code: "attempt_not_found"}

	// Grading errors
	case errors.Is(err, services.ErrAttemptNotSubmitted):
		return http.StatusConflict, ErrorResponse{Message: "Attempt has not been submitted", Code: "attempt_not_submitted"}
	case errors.Is(err, services.ErrAttemptAlreadyGraded):
		return http.StatusConflict, ErrorResponse{Message: "Attempt already graded", Code: "attempt_already_graded"}
	case errors.Is(err, services.ErrGradingNotAllowed):
		return http.StatusUnprocessableEntity, ErrorResponse{Message: "Grading not allowed for this question type", Code: "grading_not_allowed"}
	case errors.Is(err, services.ErrGradingIncomplete):
		return http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error(), Code: "grading_incomplete"}
	case errors.Is(err, services.ErrGradingInvalidScore):
		return http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: "invalid_score"}

	// Generic errors
	case services.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Message: "Resource not found", Code: "not_found"}
	case services.IsUnauthorized(err):
		return http.StatusForbidden, ErrorResponse{Message: "Access denied", Code: "forbidden"}
	case services.IsConflict(err):
		return http.StatusConflict, ErrorResponse{Message: "Resource conflict", Code: "conflict"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Message: "Internal server error", Code: "internal_error"}
	}
}

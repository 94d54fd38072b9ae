package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// SessionHandler serves the student facing exam session endpoints
type SessionHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

type SaveAnswerBody struct {
	SessionToken string  `json:"session_token"`
	QuestionID   uint    `json:"question_id" binding:"required"`
	Value        *string `json:"value"`
}

type SessionTokenBody struct {
	SessionToken string `json:"session_token"`
}

type ReconcileBody struct {
	SessionToken string           `json:"session_token"`
	Snapshot     session.Snapshot `json:"snapshot"`
}

type IntegrityEventBody struct {
	SessionToken string                    `json:"session_token"`
	Type         models.IntegrityEventType `json:"type" binding:"required"`
	Severity     int                       `json:"severity"`
	Details      json.RawMessage           `json:"details"`
}

type IntegrityEventResponse struct {
	EventID uint `json:"event_id"`
}

func NewSessionHandler(attemptService services.AttemptService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartSession starts or resumes the caller's attempt
// @Summary Start exam session
// @Tags sessions
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 201 {object} services.StartAttemptResult
// @Success 200 {object} services.StartAttemptResult "resumed"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exams/{exam_id}/session/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting exam session", "exam_id", examID)

	result, err := h.attemptService.Start(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// SaveAnswer stores the latest value for one question
// @Summary Save answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param answer body SaveAnswerBody true "Answer"
// @Success 200 {object} services.SaveAnswerResult
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams/{exam_id}/session/answers [put]
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body SaveAnswerBody
	if !bindJSON(c, &body) {
		return
	}

	result, err := h.attemptService.SaveAnswer(c.Request.Context(), &services.SaveAnswerRequest{
		ExamID:       examID,
		StudentID:    userID,
		SessionToken: sessionToken(c, body.SessionToken),
		QuestionID:   body.QuestionID,
		Value:        body.Value,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SubmitSession submits the attempt. Repeated calls return the stored result.
// @Summary Submit exam session
// @Tags sessions
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} services.SubmitResult
// @Failure 401 {object} ErrorResponse
// @Router /exams/{exam_id}/session/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body SessionTokenBody
	if !bindOptionalJSON(c, &body) {
		return
	}

	h.LogRequest(c, "Submitting exam session", "exam_id", examID)

	result, err := h.attemptService.Submit(c.Request.Context(), examID, userID, sessionToken(c, body.SessionToken))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReconcileSession merges an offline answer snapshot into the attempt
// @Summary Reconcile offline answers
// @Tags sessions
// @Accept json
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param snapshot body ReconcileBody true "Client snapshot"
// @Success 200 {object} services.ReconcileResult
// @Failure 409 {object} ErrorResponse
// @Router /exams/{exam_id}/session/reconcile [post]
func (h *SessionHandler) ReconcileSession(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body ReconcileBody
	if !bindJSON(c, &body) {
		return
	}

	h.LogRequest(c, "Reconciling offline answers", "exam_id", examID, "answers", len(body.Snapshot.Answers))

	result, err := h.attemptService.Reconcile(c.Request.Context(), &services.ReconcileRequest{
		ExamID:       examID,
		StudentID:    userID,
		SessionToken: sessionToken(c, body.SessionToken),
		Snapshot:     body.Snapshot,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// TimeRemaining reports the server authoritative time left
// @Summary Time remaining
// @Tags sessions
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} services.TimeRemainingResult
// @Router /exams/{exam_id}/session/time [get]
func (h *SessionHandler) TimeRemaining(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.attemptService.TimeRemaining(c.Request.Context(), examID, userID, sessionToken(c, ""))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordIntegrityEvent stores a proctoring anomaly for the attempt
// @Summary Record integrity event
// @Tags sessions
// @Accept json
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param event body IntegrityEventBody true "Event"
// @Success 201 {object} IntegrityEventResponse
// @Router /exams/{exam_id}/session/events [post]
func (h *SessionHandler) RecordIntegrityEvent(c *gin.Context) {
	examID := parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body IntegrityEventBody
	if !bindJSON(c, &body) {
		return
	}

	id, err := h.attemptService.RecordIntegrityEvent(c.Request.Context(), &services.IntegrityEventRequest{
		ExamID:       examID,
		StudentID:    userID,
		SessionToken: sessionToken(c, body.SessionToken),
		Type:         body.Type,
		Severity:     body.Severity,
		Details:      body.Details,
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    c.ClientIP(),
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, IntegrityEventResponse{EventID: id})
}

// GetResult returns the caller's own submitted result
// @Summary Attempt result
// @Tags sessions
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} services.SubmitResult
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{attempt_id}/result [get]
func (h *SessionHandler) GetResult(c *gin.Context) {
	attemptID := parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

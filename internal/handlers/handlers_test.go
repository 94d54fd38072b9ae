package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/middleware"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	clock  *session.ManualClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewRepository()
	repo.PutExam(&models.Exam{
		ID:              1,
		Title:           "Handlers exam",
		DurationMinutes: 30,
		IsPublished:     true,
		Questions: []models.Question{
			{ID: 1, Order: 1, Type: models.TrueFalse, Points: 1, AnswerKey: datatypes.NewJSONType(models.AnswerKey{CorrectBool: models.BoolPtr(true)})},
			{ID: 2, Order: 2, Type: models.Numeric, Points: 1, AnswerKey: datatypes.NewJSONType(models.AnswerKey{CorrectValue: models.FloatPtr(42)})},
		},
	})

	clock := session.NewManualClock(testStart)
	manager := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Tokens:    session.NewTokenIssuer("handler-secret", time.Hour, clock),
		Clock:     clock,
		Publisher: events.NewMockEventPublisher(slogger),
		Logger:    slogger,
	})

	router := gin.New()
	NewHandlerManager(manager, repo, utils.NewSlogLogger(slogger)).SetupRoutes(router)
	return &testServer{router: router, clock: clock}
}

type call struct {
	method string
	path   string
	user   string
	role   string
	token  string
	body   interface{}
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(c.method, c.path, reader)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(middleware.HeaderUserID, c.user)
	}
	if c.role != "" {
		req.Header.Set(middleware.HeaderUserRole, c.role)
	}
	if c.token != "" {
		req.Header.Set(headerSessionToken, c.token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (s *testServer) start(t *testing.T, user string) services.StartAttemptResult {
	t.Helper()
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/exams/1/session/start", user: user})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[services.StartAttemptResult](t, w)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"exam-session-service"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}

func TestSessionHandler_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	started := s.start(t, "s1")
	assert.NotEmpty(t, started.SessionToken)
	assert.Len(t, started.Questions, 2)

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/exams/1/session/start", user: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	resumed := decode[services.StartAttemptResult](t, w)
	assert.True(t, resumed.Resumed)
	token := resumed.SessionToken

	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: token,
		body: map[string]interface{}{"question_id": 1, "value": "true"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "saved", decode[services.SaveAnswerResult](t, w).Status)

	// Token in the body works as well
	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1",
		body: map[string]interface{}{"question_id": 2, "value": "42", "session_token": token}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.clock.Advance(time.Minute)
	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/exams/1/session/time", user: "s1", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(29*60), decode[services.TimeRemainingResult](t, w).RemainingSeconds)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/exams/1/session/events", user: "s1", token: token,
		body: map[string]interface{}{"type": "tab_switch", "details": map[string]int{"count": 1}}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/exams/1/session/submit", user: "s1", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[services.SubmitResult](t, w)
	assert.Equal(t, models.AttemptGraded, result.Status)
	assert.Equal(t, 2.0, *result.Score)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/attempts/1/result", user: "s1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/attempts/1/result", user: "s2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: token,
		body: map[string]interface{}{"question_id": 1, "value": "false"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "attempt_already_completed", decode[ErrorResponse](t, w).Code)
}

func TestSessionHandler_Errors(t *testing.T) {
	s := newTestServer(t)
	token := s.start(t, "s1").SessionToken

	tests := []struct {
		name       string
		call       call
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no user",
			call:       call{method: http.MethodPost, path: "/api/v1/exams/1/session/start"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthenticated",
		},
		{
			name:       "bad exam id",
			call:       call{method: http.MethodPost, path: "/api/v1/exams/abc/session/start", user: "s1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_parameter",
		},
		{
			name:       "unknown exam",
			call:       call{method: http.MethodPost, path: "/api/v1/exams/9/session/start", user: "s1"},
			wantStatus: http.StatusNotFound,
			wantCode:   "exam_not_found",
		},
		{
			name: "unknown question",
			call: call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: token,
				body: map[string]interface{}{"question_id": 7, "value": "x"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unknown_question",
		},
		{
			name: "bad token",
			call: call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: "forged",
				body: map[string]interface{}{"question_id": 1, "value": "true"}},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_session_token",
		},
		{
			name: "missing question id",
			call: call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: token,
				body: map[string]interface{}{"value": "true"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_payload",
		},
		{
			name: "invalid event type",
			call: call{method: http.MethodPost, path: "/api/v1/exams/1/session/events", user: "s1", token: token,
				body: map[string]interface{}{"type": "mind_reading"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name:       "result before submit",
			call:       call{method: http.MethodGet, path: "/api/v1/attempts/1/result", user: "s1"},
			wantStatus: http.StatusConflict,
			wantCode:   "attempt_not_submitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.call)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestSessionHandler_LateSaveReturnsResult(t *testing.T) {
	s := newTestServer(t)
	token := s.start(t, "s1").SessionToken

	s.clock.Advance(31 * time.Minute)
	w := s.do(t, call{method: http.MethodPut, path: "/api/v1/exams/1/session/answers", user: "s1", token: token,
		body: map[string]interface{}{"question_id": 1, "value": "true"}})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code    string                `json:"code"`
		Details services.SubmitResult `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "deadline_expired", resp.Code)
	assert.Equal(t, models.AttemptGraded, resp.Details.Status)
	assert.Equal(t, models.SubmitDeadline, *resp.Details.SubmitReason)
}

func TestGradingHandler_StaffOnly(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/exams/1/results/export", user: "s1", role: "student"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/exams/1/results/export", user: "t1", role: "teacher"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "exam-1-results-")
	assert.NotZero(t, w.Body.Len())
}

func TestGradingHandler_ClassifyWeighted(t *testing.T) {
	s := newTestServer(t)

	scores := []float64{85, 78, 82, 76, 80, 79}
	subjects := make([]grading.SubjectScore, 0, len(scores))
	for i, sw := range grading.LicensureSubjects {
		subjects = append(subjects, grading.SubjectScore{Name: sw.Name, Score: scores[i], Weight: sw.Weight})
	}

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/grading/classify", user: "t1", role: "teacher",
		body: services.ClassifyRequest{Subjects: subjects}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[grading.WeightedResult](t, w)
	assert.Equal(t, 80.25, result.GeneralAverage)
	assert.Equal(t, models.ResultPass, result.Status)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/grading/classify", user: "t1", role: "teacher",
		body: services.ClassifyRequest{Subjects: subjects[:1]}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradingHandler_ManualGradingConflicts(t *testing.T) {
	s := newTestServer(t)
	token := s.start(t, "s1").SessionToken

	body := map[string]interface{}{"grades": []map[string]interface{}{{"question_id": 1, "points": 1}}}
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/grading/attempts/1/manual", user: "t1", role: "teacher", body: body})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "attempt_not_submitted", decode[ErrorResponse](t, w).Code)

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/exams/1/session/submit", user: "s1", token: token})
	require.Equal(t, http.StatusOK, w.Code)

	// Fully machine graded attempts are already final
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/grading/attempts/1/manual", user: "t1", role: "teacher", body: body})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "attempt_already_graded", decode[ErrorResponse](t, w).Code)

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/grading/attempts/1", user: "t1", role: "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[services.SubmitResult](t, w).Questions, 2)
}

package events

import (
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the lifecycle events emitted by the session engine
type EventType string

const (
	// Attempt events
	EventAttemptStarted       EventType = "attempt.started"
	EventAttemptResumed       EventType = "attempt.resumed"
	EventAttemptSubmitted     EventType = "attempt.submitted"
	EventAttemptAutoSubmitted EventType = "attempt.auto_submitted"
	EventAttemptGraded        EventType = "attempt.graded"

	// Grading events
	EventManualGradingRequired EventType = "grading.manual_required"

	// Proctoring events
	EventIntegrityRecorded EventType = "integrity.recorded"
)

const (
	eventSource  = "exam-session-service"
	eventVersion = "1.0"
)

// ExamEvent is the envelope for every published event
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	ExamTitle string    `json:"exam_title"`
	StudentID string    `json:"student_id"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

type AttemptSubmittedEvent struct {
	AttemptID       uint                `json:"attempt_id"`
	ExamID          uint                `json:"exam_id"`
	StudentID       string              `json:"student_id"`
	SubmittedAt     time.Time           `json:"submitted_at"`
	Reason          models.SubmitReason `json:"reason"`
	Score           *float64            `json:"score,omitempty"`
	MaxScore        float64             `json:"max_score"`
	GradingRequired bool                `json:"grading_required"`
	Warnings        []string            `json:"warnings,omitempty"`
}

type AttemptGradedEvent struct {
	AttemptID      uint                 `json:"attempt_id"`
	ExamID         uint                 `json:"exam_id"`
	StudentID      string               `json:"student_id"`
	GradedAt       time.Time            `json:"graded_at"`
	Score          float64              `json:"score"`
	MaxScore       float64              `json:"max_score"`
	Percentage     int                  `json:"percentage"`
	ResultStatus   *models.ResultStatus `json:"result_status,omitempty"`
	GeneralAverage *float64             `json:"general_average,omitempty"`
	GraderID       string               `json:"grader_id,omitempty"`
}

type ManualGradingRequiredEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	ExamID      uint      `json:"exam_id"`
	StudentID   string    `json:"student_id"`
	QuestionIDs []uint    `json:"question_ids"`
	RequiredAt  time.Time `json:"required_at"`
}

type IntegrityRecordedEvent struct {
	EventID    uint                      `json:"event_id"`
	AttemptID  uint                      `json:"attempt_id"`
	ExamID     uint                      `json:"exam_id"`
	StudentID  string                    `json:"student_id"`
	Type       models.IntegrityEventType `json:"type"`
	Severity   int                       `json:"severity"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// NewExamEvent wraps a payload in the standard envelope
func NewExamEvent(eventType EventType, data interface{}) *ExamEvent {
	return &ExamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// WithMetadata sets a metadata key and returns the event for chaining
func (e *ExamEvent) WithMetadata(key string, value interface{}) *ExamEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ForAttempt keys the event by attempt so one attempt's events stay ordered
func (e *ExamEvent) ForAttempt(attemptID uint) *ExamEvent {
	return e.WithMetadata(partitionKeyHeader, attemptID)
}

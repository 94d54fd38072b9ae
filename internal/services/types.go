package services

import (
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
)

// ===== REQUESTS =====

type SaveAnswerRequest struct {
	ExamID       uint   `json:"exam_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	SessionToken string `json:"session_token" validate:"required"`
	QuestionID   uint   `json:"question_id" validate:"required"`
	// Value is nil to clear the answer. A blank value grades as unanswered.
	Value *string `json:"value" validate:"omitempty,max=10000"`
}

type ReconcileRequest struct {
	ExamID       uint             `json:"exam_id" validate:"required"`
	StudentID    string           `json:"student_id" validate:"required"`
	SessionToken string           `json:"session_token" validate:"required"`
	Snapshot     session.Snapshot `json:"snapshot"`
}

type IntegrityEventRequest struct {
	ExamID       uint                      `json:"exam_id" validate:"required"`
	StudentID    string                    `json:"student_id" validate:"required"`
	SessionToken string                    `json:"session_token" validate:"required"`
	Type         models.IntegrityEventType `json:"type" validate:"required,integrity_event_type"`
	Severity     int                       `json:"severity" validate:"omitempty,gte=1,lte=5"`
	Details      json.RawMessage           `json:"details,omitempty"`
	UserAgent    string                    `json:"user_agent"`
	IPAddress    string                    `json:"ip_address"`
}

type ManualGradeInput struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	Points     float64 `json:"points" validate:"gte=0"`
	Feedback   string  `json:"feedback"`
}

type ManualGradingRequest struct {
	AttemptID uint               `json:"attempt_id" validate:"required"`
	GraderID  string             `json:"grader_id" validate:"required"`
	Grades    []ManualGradeInput `json:"grades" validate:"required,min=1,dive"`
}

type ClassifyRequest struct {
	Subjects []grading.SubjectScore `json:"subjects" validate:"required,min=1,unique_subjects,weights_total,dive"`
}

// ===== RESPONSES =====

type OptionView struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionView is what a student sees of a question. It never carries the key.
type QuestionView struct {
	ID      uint                `json:"id"`
	Type    models.QuestionType `json:"type"`
	Prompt  string              `json:"prompt"`
	Points  float64             `json:"points"`
	Subject string              `json:"subject,omitempty"`
	Options []OptionView        `json:"options,omitempty"`
}

type AnswerView struct {
	QuestionID uint      `json:"question_id"`
	Value      string    `json:"value"`
	SavedAt    time.Time `json:"saved_at"`
}

type StartAttemptResult struct {
	AttemptID        uint                 `json:"attempt_id"`
	ExamID           uint                 `json:"exam_id"`
	ExamTitle        string               `json:"exam_title"`
	Status           models.AttemptStatus `json:"status"`
	Resumed          bool                 `json:"resumed"`
	SessionToken     string               `json:"session_token"`
	StartedAt        time.Time            `json:"started_at"`
	Deadline         time.Time            `json:"deadline"`
	ServerTime       time.Time            `json:"server_time"`
	RemainingSeconds int64                `json:"remaining_seconds"`
	Questions        []QuestionView       `json:"questions"`
	Answers          []AnswerView         `json:"answers"`
}

type SaveAnswerResult struct {
	Status           string    `json:"status"`
	AttemptID        uint      `json:"attempt_id"`
	QuestionID       uint      `json:"question_id"`
	SavedAt          time.Time `json:"saved_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type ReconcileResult struct {
	AttemptID        uint                    `json:"attempt_id"`
	Applied          []uint                  `json:"applied"`
	Dropped          []session.DroppedAnswer `json:"dropped"`
	Answers          []AnswerView            `json:"answers"`
	Deadline         time.Time               `json:"deadline"`
	RemainingSeconds int64                   `json:"remaining_seconds"`
}

type TimeRemainingResult struct {
	AttemptID        uint                 `json:"attempt_id"`
	Status           models.AttemptStatus `json:"status"`
	ServerTime       time.Time            `json:"server_time"`
	Deadline         time.Time            `json:"deadline"`
	RemainingSeconds int64                `json:"remaining_seconds"`
	Expired          bool                 `json:"expired"`
}

type QuestionResult struct {
	QuestionID        uint                `json:"question_id"`
	Type              models.QuestionType `json:"type"`
	Answer            string              `json:"answer"`
	Points            *float64            `json:"points"`
	MaxPoints         float64             `json:"max_points"`
	IsCorrect         *bool               `json:"is_correct"`
	NeedsManualReview bool                `json:"needs_manual_review"`
	Feedback          string              `json:"feedback,omitempty"`
}

// SubmitResult is the stored outcome of an attempt. Submit returns it for the
// first and every later call.
type SubmitResult struct {
	AttemptID         uint                 `json:"attempt_id"`
	ExamID            uint                 `json:"exam_id"`
	StudentID         string               `json:"student_id"`
	Status            models.AttemptStatus `json:"status"`
	AlreadySubmitted  bool                 `json:"already_submitted"`
	SubmittedAt       *time.Time           `json:"submitted_at"`
	SubmitReason      *models.SubmitReason `json:"submit_reason,omitempty"`
	Score             *float64             `json:"score"`
	MaxScore          float64              `json:"max_score"`
	Percentage        *int                 `json:"percentage"`
	CorrectCount      int                  `json:"correct_count"`
	GradedAt          *time.Time           `json:"graded_at"`
	NeedsManualReview bool                 `json:"needs_manual_review"`
	Feedback          string               `json:"feedback,omitempty"`
	Questions         []QuestionResult     `json:"questions"`

	// Weighted exams only
	GeneralAverage *float64              `json:"general_average,omitempty"`
	ResultStatus   *models.ResultStatus  `json:"result_status,omitempty"`
	ResultMessage  string                `json:"result_message,omitempty"`
	SubjectScores  []models.SubjectScore `json:"subject_scores,omitempty"`
	RetakeSubjects []string              `json:"retake_subjects,omitempty"`

	// Warnings about malformed answer keys, only on the grading call
	Warnings []string `json:"warnings,omitempty"`
}

// remainingSeconds converts a duration to whole seconds for the wire.
func remainingSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

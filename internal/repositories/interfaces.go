package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repository groups the stores used by the services. Every method on the
// individual repositories accepts an optional transaction handle; nil means
// "use the default connection".
type Repository interface {
	Exam() ExamRepository
	Attempt() AttemptRepository
	IntegrityEvent() IntegrityEventRepository

	// WithTransaction runs fn inside one transaction. fn receives the handle
	// to pass to repository calls that must take part in it.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Ping(ctx context.Context) error
	Close() error
}

// ===== SHARED HELPER STRUCTS =====

// StatusTransition describes the fields written together with a status
// change. Nil fields are left untouched.
type StatusTransition struct {
	To             models.AttemptStatus
	SubmittedAt    *time.Time
	SubmitReason   *models.SubmitReason
	Score          *float64
	MaxScore       *float64
	Percentage     *int
	GradedAt       *time.Time
	GeneralAverage *float64
	ResultStatus   *models.ResultStatus
	SubjectScores  []models.SubjectScore
}

// AnswerOutcome is the grading result written back to one answer row.
// Questions that were never answered get a row with an empty value.
type AnswerOutcome struct {
	QuestionID uint
	Points     float64
	IsCorrect  bool
	Feedback   string
	GradedBy   *string
}

type AttemptFilters struct {
	Status *models.AttemptStatus `json:"status"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

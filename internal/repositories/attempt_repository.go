package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository reads exam definitions. Exams are authored by another
// service, so there are no write methods.
type ExamRepository interface {
	// GetByID returns the exam with its questions in exam order.
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
}

// AttemptRepository interface for attempt and answer operations
type AttemptRepository interface {
	// Basic operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Attempt, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.Attempt, error)

	// Time management
	// GetExpiredInProgress pages through in-progress attempts whose deadline
	// is before now, ordered by deadline then id.
	GetExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, offset, limit int) ([]*models.Attempt, error)

	// State management
	// LockInProgress takes a share lock on the attempt row while it is in
	// progress. It returns ErrNotFound when the attempt is in any other state.
	LockInProgress(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	// TransitionStatus applies t only when the attempt is still in status
	// from and reports whether this call performed the transition.
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from models.AttemptStatus, t StatusTransition) (bool, error)
	// RotateToken makes tokenID the only accepted session token of an
	// in-progress attempt.
	RotateToken(ctx context.Context, tx *gorm.DB, id uint, tokenID string) (bool, error)

	// Answers
	UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error
	// UpsertAnswerIfNewer writes the answer only when no stored answer has a
	// SavedAt at or after the given one.
	UpsertAnswerIfNewer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) (bool, error)
	GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.AttemptAnswer, error)
	SaveOutcomes(ctx context.Context, tx *gorm.DB, attemptID uint, outcomes []AnswerOutcome, gradedAt time.Time) error

	// Manual grading audit
	CreateManualGrades(ctx context.Context, tx *gorm.DB, grades []models.ManualGrade) error
	GetManualGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.ManualGrade, error)
}

// IntegrityEventRepository stores proctoring anomalies
type IntegrityEventRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.IntegrityEvent, error)
	CountByAttempt(ctx context.Context, tx *gorm.DB, attemptIDs []uint) (map[uint]int, error)
}

package services

import (
	"bytes"
	"context"

	"github.com/SAP-F-2025/exam-session-service/internal/grading"
)

// AttemptService drives one student's exam session from start to submit
type AttemptService interface {
	// Session lifecycle
	Start(ctx context.Context, examID uint, studentID string) (*StartAttemptResult, error)
	SaveAnswer(ctx context.Context, req *SaveAnswerRequest) (*SaveAnswerResult, error)
	Submit(ctx context.Context, examID uint, studentID, sessionToken string) (*SubmitResult, error)
	Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResult, error)

	// Time authority
	TimeRemaining(ctx context.Context, examID uint, studentID, sessionToken string) (*TimeRemainingResult, error)
	SubmitExpired(ctx context.Context, limit int) (int, error)

	// Proctoring
	RecordIntegrityEvent(ctx context.Context, req *IntegrityEventRequest) (uint, error)

	// Results
	GetResult(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error)
}

// GradingService finalizes attempts that need a human grader and exposes the
// weighted classifier
type GradingService interface {
	ApplyManualGrades(ctx context.Context, req *ManualGradingRequest) (*SubmitResult, error)
	GetAttemptForGrading(ctx context.Context, attemptID uint) (*SubmitResult, error)
	ClassifyWeighted(ctx context.Context, req *ClassifyRequest) (*grading.WeightedResult, error)
}

// ResultExportService renders exam results for staff
type ResultExportService interface {
	ExportExamResults(ctx context.Context, examID uint) (*bytes.Buffer, error)
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"gorm.io/gorm"
)

type gradingService struct {
	repo      repositories.Repository
	clock     session.Clock
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewGradingService(
	repo repositories.Repository,
	clock session.Clock,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) GradingService {
	return &gradingService{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		ops:       NewServiceLogger(logger, "grading"),
	}
}

// ApplyManualGrades records grader decisions for every short answer question
// of a submitted attempt and moves it to Graded. Partial grading is rejected
// so the final score is computed exactly once.
func (s *gradingService) ApplyManualGrades(ctx context.Context, req *ManualGradingRequest) (result *SubmitResult, err error) {
	op := s.ops.WithOperation(ctx, "apply_manual_grades", req.GraderID)
	defer func() { op.LogResult(req.AttemptID, "attempt", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := getAttempt(ctx, s.repo, nil, req.AttemptID)
	if err != nil {
		return nil, err
	}
	if err := checkGradable(attempt); err != nil {
		return nil, err
	}

	exam, err := loadExam(ctx, s.repo, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	grades, err := s.validateGrades(exam, req.Grades)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		current, err := getAttempt(ctx, s.repo, tx, attempt.ID)
		if err != nil {
			return err
		}
		if err := checkGradable(current); err != nil {
			return err
		}

		answers, err := s.repo.Attempt().GetAnswers(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}
		points := make(map[uint]float64, len(exam.Questions))
		for _, a := range answers {
			if a.Points != nil {
				points[a.QuestionID] = *a.Points
			}
		}

		graderID := req.GraderID
		outcomes := make([]repositories.AnswerOutcome, 0, len(grades))
		audit := make([]models.ManualGrade, 0, len(grades))
		for _, g := range grades {
			q, _ := exam.Question(g.QuestionID)
			points[g.QuestionID] = g.Points
			outcomes = append(outcomes, repositories.AnswerOutcome{
				QuestionID: g.QuestionID,
				Points:     g.Points,
				IsCorrect:  g.Points >= q.Points,
				Feedback:   g.Feedback,
				GradedBy:   &graderID,
			})
			audit = append(audit, models.ManualGrade{
				AttemptID:  attempt.ID,
				QuestionID: g.QuestionID,
				Points:     g.Points,
				GraderID:   graderID,
			})
		}

		if err := s.repo.Attempt().SaveOutcomes(ctx, tx, attempt.ID, outcomes, now); err != nil {
			return err
		}
		if err := s.repo.Attempt().CreateManualGrades(ctx, tx, audit); err != nil {
			return err
		}

		ok, err := s.repo.Attempt().TransitionStatus(ctx, tx, attempt.ID, models.AttemptSubmitted,
			gradedTransition(exam, points, now, s.logger))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAttemptAlreadyGraded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	graded, err := getAttempt(ctx, s.repo, nil, attempt.ID)
	if err != nil {
		return nil, err
	}
	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	s.logger.Info("Attempt graded manually",
		"attempt_id", attempt.ID,
		"grader_id", req.GraderID,
		"questions", len(grades))

	publishGraded(ctx, s.publisher, s.logger, graded, req.GraderID)
	return buildResult(exam, graded, answers), nil
}

// GetAttemptForGrading returns the stored result with every answer, for staff.
func (s *gradingService) GetAttemptForGrading(ctx context.Context, attemptID uint) (*SubmitResult, error) {
	attempt, err := getAttempt(ctx, s.repo, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptInProgress {
		return nil, ErrAttemptNotSubmitted
	}

	exam, err := loadExam(ctx, s.repo, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	answers, err := s.repo.Attempt().GetAnswers(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return buildResult(exam, attempt, answers), nil
}

// ClassifyWeighted runs the weighted subject classifier on caller supplied
// scores.
func (s *gradingService) ClassifyWeighted(ctx context.Context, req *ClassifyRequest) (*grading.WeightedResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	result, err := grading.ClassifyWeighted(req.Subjects)
	if err != nil {
		return nil, NewValidationError("subjects", err.Error(), len(req.Subjects))
	}
	return &result, nil
}

// ===== HELPERS =====

func checkGradable(attempt *models.Attempt) error {
	switch attempt.Status {
	case models.AttemptSubmitted:
		return nil
	case models.AttemptGraded:
		return ErrAttemptAlreadyGraded
	default:
		return ErrAttemptNotSubmitted
	}
}

// validateGrades checks every input against the exam and requires a grade
// for each short answer question.
func (s *gradingService) validateGrades(exam *models.Exam, inputs []ManualGradeInput) ([]ManualGradeInput, error) {
	seen := make(map[uint]struct{}, len(inputs))
	for _, g := range inputs {
		q, ok := exam.Question(g.QuestionID)
		if !ok {
			return nil, ErrUnknownQuestion
		}
		if q.Type != models.ShortAnswer {
			return nil, ErrGradingNotAllowed
		}
		if g.Points < 0 || g.Points > q.Points {
			return nil, fmt.Errorf("%w: %g is outside 0..%g for question %d", ErrGradingInvalidScore, g.Points, q.Points, q.ID)
		}
		if _, dup := seen[g.QuestionID]; dup {
			return nil, NewValidationError("grades", "question graded more than once", g.QuestionID)
		}
		seen[g.QuestionID] = struct{}{}
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		if q.Type != models.ShortAnswer {
			continue
		}
		if _, ok := seen[q.ID]; !ok {
			return nil, fmt.Errorf("%w: question %d has no grade", ErrGradingIncomplete, q.ID)
		}
	}
	return inputs, nil
}

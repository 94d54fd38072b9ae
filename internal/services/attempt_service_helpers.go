package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/grading"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ===== REPOSITORY WRAPPERS =====

// loadExam reads an exam regardless of its publication state. Attempts that
// are already running keep working if the exam is unpublished mid-session.
func loadExam(ctx context.Context, repo repositories.Repository, examID uint) (*models.Exam, error) {
	exam, err := repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

// findAttempt models the "no row means not started" state explicitly.
func findAttempt(ctx context.Context, repo repositories.Repository, tx *gorm.DB, examID uint, studentID string) (*models.Attempt, bool, error) {
	attempt, err := repo.Attempt().GetByExamAndStudent(ctx, tx, examID, studentID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, true, nil
}

func getAttempt(ctx context.Context, repo repositories.Repository, tx *gorm.DB, attemptID uint) (*models.Attempt, error) {
	attempt, err := repo.Attempt().GetByID(ctx, tx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// ===== GRADING HELPERS =====

func answerMap(answers []models.AttemptAnswer) map[uint]string {
	m := make(map[uint]string, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a.Value
	}
	return m
}

func outcomesFrom(agg grading.AggregateOutcome) []repositories.AnswerOutcome {
	out := make([]repositories.AnswerOutcome, 0, len(agg.Questions))
	for _, q := range agg.Questions {
		out = append(out, repositories.AnswerOutcome{
			QuestionID: q.QuestionID,
			Points:     q.Points,
			IsCorrect:  q.IsCorrect,
			Feedback:   q.Feedback,
		})
	}
	return out
}

func pointsFrom(agg grading.AggregateOutcome) map[uint]float64 {
	points := make(map[uint]float64, len(agg.Questions))
	for _, q := range agg.Questions {
		points[q.QuestionID] = q.Points
	}
	return points
}

// subjectScores turns per-question points into the percentage earned in each
// subject of a weighted exam, rounded to two decimals.
func subjectScores(exam *models.Exam, points map[uint]float64) []grading.SubjectScore {
	scores := make([]grading.SubjectScore, 0, len(exam.SubjectWeights))
	for _, sw := range exam.SubjectWeights {
		earned, possible := decimal.Zero, decimal.Zero
		for i := range exam.Questions {
			q := &exam.Questions[i]
			if q.Subject != sw.Name {
				continue
			}
			earned = earned.Add(decimal.NewFromFloat(points[q.ID]))
			possible = possible.Add(decimal.NewFromFloat(q.Points))
		}

		score := decimal.Zero
		if possible.IsPositive() {
			score = earned.Mul(decimal.NewFromInt(100)).Div(possible).Round(2)
		}
		scores = append(scores, grading.SubjectScore{
			Name:   sw.Name,
			Score:  score.InexactFloat64(),
			Weight: sw.Weight,
		})
	}
	return scores
}

// gradedTransition builds the Submitted to Graded update from final
// per-question points. Weighted exams are classified on the way.
func gradedTransition(exam *models.Exam, points map[uint]float64, now time.Time, logger *slog.Logger) repositories.StatusTransition {
	total := decimal.Zero
	for i := range exam.Questions {
		total = total.Add(decimal.NewFromFloat(points[exam.Questions[i].ID]))
	}
	score := total.InexactFloat64()
	maxScore := exam.TotalPoints()
	percentage := grading.Percentage(score, maxScore)

	t := repositories.StatusTransition{
		To:         models.AttemptGraded,
		Score:      &score,
		MaxScore:   &maxScore,
		Percentage: &percentage,
		GradedAt:   &now,
	}

	if !exam.IsWeighted() {
		return t
	}

	subjects := subjectScores(exam, points)
	result, err := grading.ClassifyWeighted(subjects)
	if err != nil {
		logger.Warn("Skipping weighted classification", "exam_id", exam.ID, "error", err)
		return t
	}

	status := result.Status
	t.GeneralAverage = &result.GeneralAverage
	t.ResultStatus = &status
	t.SubjectScores = make([]models.SubjectScore, 0, len(subjects))
	for _, s := range subjects {
		t.SubjectScores = append(t.SubjectScores, models.SubjectScore{Name: s.Name, Score: s.Score, Weight: s.Weight})
	}
	return t
}

// ===== RESULT VIEWS =====

// buildResult renders the stored state of an attempt. It reads only persisted
// data so every caller sees the same result.
func buildResult(exam *models.Exam, attempt *models.Attempt, answers []models.AttemptAnswer) *SubmitResult {
	byQuestion := make(map[uint]*models.AttemptAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	graded := attempt.Status == models.AttemptGraded
	result := &SubmitResult{
		AttemptID:         attempt.ID,
		ExamID:            attempt.ExamID,
		StudentID:         attempt.StudentID,
		Status:            attempt.Status,
		SubmittedAt:       attempt.SubmittedAt,
		SubmitReason:      attempt.SubmitReason,
		Score:             attempt.Score,
		MaxScore:          attempt.MaxScore,
		Percentage:        attempt.Percentage,
		GradedAt:          attempt.GradedAt,
		NeedsManualReview: attempt.Status == models.AttemptSubmitted && exam.HasShortAnswers(),
		GeneralAverage:    attempt.GeneralAverage,
		ResultStatus:      attempt.ResultStatus,
		Questions:         make([]QuestionResult, 0, len(exam.Questions)),
	}
	if result.MaxScore == 0 {
		result.MaxScore = exam.TotalPoints()
	}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		qr := QuestionResult{
			QuestionID:        q.ID,
			Type:              q.Type,
			MaxPoints:         q.Points,
			NeedsManualReview: q.Type == models.ShortAnswer && !graded,
		}
		if a, ok := byQuestion[q.ID]; ok {
			qr.Answer = a.Value
			qr.Points = a.Points
			qr.IsCorrect = a.IsCorrect
			qr.Feedback = a.Feedback
			if a.IsCorrect != nil && *a.IsCorrect {
				result.CorrectCount++
			}
		}
		result.Questions = append(result.Questions, qr)
	}

	if graded && attempt.Score != nil && attempt.Percentage != nil {
		result.Feedback = grading.OverallFeedback(*attempt.Score, result.MaxScore, *attempt.Percentage,
			result.CorrectCount, len(exam.Questions))
	}

	if attempt.ResultStatus != nil && len(attempt.SubjectScores) > 0 {
		result.SubjectScores = attempt.SubjectScores
		subjects := make([]grading.SubjectScore, 0, len(attempt.SubjectScores))
		for _, s := range attempt.SubjectScores {
			subjects = append(subjects, grading.SubjectScore{Name: s.Name, Score: s.Score, Weight: s.Weight})
		}
		if weighted, err := grading.ClassifyWeighted(subjects); err == nil {
			result.ResultMessage = weighted.Message
			result.RetakeSubjects = weighted.RetakeSubjects
		}
	}

	return result
}

func questionViews(exam *models.Exam, order []uint) []QuestionView {
	views := make([]QuestionView, 0, len(exam.Questions))
	seen := make(map[uint]struct{}, len(exam.Questions))

	add := func(q *models.Question) {
		v := QuestionView{
			ID:      q.ID,
			Type:    q.Type,
			Prompt:  q.Prompt,
			Points:  q.Points,
			Subject: q.Subject,
		}
		for _, opt := range q.Key().Options {
			v.Options = append(v.Options, OptionView{Label: opt.Label, Text: opt.Text})
		}
		views = append(views, v)
		seen[q.ID] = struct{}{}
	}

	for _, id := range order {
		if q, ok := exam.Question(id); ok {
			add(q)
		}
	}
	// Questions added after the attempt started go last
	for i := range exam.Questions {
		if _, ok := seen[exam.Questions[i].ID]; !ok {
			add(&exam.Questions[i])
		}
	}
	return views
}

func answerViews(answers []models.AttemptAnswer) []AnswerView {
	views := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		views = append(views, AnswerView{QuestionID: a.QuestionID, Value: a.Value, SavedAt: a.SavedAt})
	}
	return views
}

// ===== EVENTS =====

// publishEvent never fails the caller: the attempt is already committed.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, attemptID uint, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	event := events.NewExamEvent(eventType, data).ForAttempt(attemptID)
	if err := publisher.PublishEvent(ctx, event); err != nil {
		logger.Error("Failed to publish event",
			"event_type", eventType,
			"attempt_id", attemptID,
			"error", err)
	}
}

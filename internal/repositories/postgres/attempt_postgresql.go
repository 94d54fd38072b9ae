package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var answerConflictColumns = []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}}

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

// ===== BASIC OPERATIONS =====

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(attempt).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt

	query := db.WithContext(ctx).Where("exam_id = ?", examID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("id ASC").Preload("Answers").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

// ===== TIME MANAGEMENT =====

func (a *AttemptPostgreSQL) GetExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, offset, limit int) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt

	query := db.WithContext(ctx).
		Where("status = ? AND deadline < ?", models.AttemptInProgress, now).
		Order("deadline ASC, id ASC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get expired attempts: %w", err)
	}
	return attempts, nil
}

// ===== STATE MANAGEMENT =====

func (a *AttemptPostgreSQL) LockInProgress(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint, from models.AttemptStatus, t repositories.StatusTransition) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(transitionColumns(t))
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition attempt %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) RotateToken(ctx context.Context, tx *gorm.DB, id uint, tokenID string) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Update("token_id", tokenID)
	if result.Error != nil {
		return false, fmt.Errorf("failed to rotate session token: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ===== ANSWERS =====

func (a *AttemptPostgreSQL) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   answerConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"value", "saved_at", "updated_at"}),
		}).
		Create(answer).Error; err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) UpsertAnswerIfNewer(ctx context.Context, tx *gorm.DB, answer *models.AttemptAnswer) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   answerConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"value", "saved_at", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "attempt_answers.saved_at < excluded.saved_at"},
			}},
		}).
		Create(answer)
	if result.Error != nil {
		return false, fmt.Errorf("failed to merge answer: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.AttemptAnswer, error) {
	db := a.getDB(tx)
	var answers []models.AttemptAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}
	return answers, nil
}

func (a *AttemptPostgreSQL) SaveOutcomes(ctx context.Context, tx *gorm.DB, attemptID uint, outcomes []repositories.AnswerOutcome, gradedAt time.Time) error {
	if len(outcomes) == 0 {
		return nil
	}
	db := a.getDB(tx)

	rows := make([]models.AttemptAnswer, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, models.AttemptAnswer{
			AttemptID:  attemptID,
			QuestionID: o.QuestionID,
			SavedAt:    gradedAt,
			Points:     models.FloatPtr(o.Points),
			IsCorrect:  models.BoolPtr(o.IsCorrect),
			Feedback:   o.Feedback,
			GradedBy:   o.GradedBy,
		})
	}

	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   answerConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"points", "is_correct", "feedback", "graded_by", "updated_at"}),
		}).
		Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save grading outcomes: %w", err)
	}
	return nil
}

// ===== MANUAL GRADING =====

func (a *AttemptPostgreSQL) CreateManualGrades(ctx context.Context, tx *gorm.DB, grades []models.ManualGrade) error {
	if len(grades) == 0 {
		return nil
	}
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(&grades).Error; err != nil {
		return fmt.Errorf("failed to record manual grades: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetManualGrades(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.ManualGrade, error) {
	db := a.getDB(tx)
	var grades []models.ManualGrade
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&grades).Error; err != nil {
		return nil, fmt.Errorf("failed to get manual grades: %w", err)
	}
	return grades, nil
}

// ===== HELPER METHODS =====

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func transitionColumns(t repositories.StatusTransition) map[string]interface{} {
	columns := map[string]interface{}{"status": t.To}
	if t.SubmittedAt != nil {
		columns["submitted_at"] = *t.SubmittedAt
	}
	if t.SubmitReason != nil {
		columns["submit_reason"] = *t.SubmitReason
	}
	if t.Score != nil {
		columns["score"] = *t.Score
	}
	if t.MaxScore != nil {
		columns["max_score"] = *t.MaxScore
	}
	if t.Percentage != nil {
		columns["percentage"] = *t.Percentage
	}
	if t.GradedAt != nil {
		columns["graded_at"] = *t.GradedAt
	}
	if t.GeneralAverage != nil {
		columns["general_average"] = *t.GeneralAverage
	}
	if t.ResultStatus != nil {
		columns["result_status"] = *t.ResultStatus
	}
	if t.SubjectScores != nil {
		columns["subject_scores"] = datatypes.JSONSlice[models.SubjectScore](t.SubjectScores)
	}
	return columns
}

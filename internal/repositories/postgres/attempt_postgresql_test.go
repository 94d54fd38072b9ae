package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestAttemptPostgreSQL_TransitionStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	reason := models.SubmitManual

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "winner performs the transition", affected: 1, want: true},
		{name: "loser sees no row in the source state", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewAttemptPostgreSQL(db)

			mock.ExpectExec(`UPDATE "attempts" SET .* WHERE id = \$\d+ AND status = \$\d+`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.TransitionStatus(ctx, nil, 7, models.AttemptInProgress, repositories.StatusTransition{
				To:           models.AttemptSubmitted,
				SubmittedAt:  &now,
				SubmitReason: &reason,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttemptPostgreSQL_TransitionStatusError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAttemptPostgreSQL(db)

	mock.ExpectExec(`UPDATE "attempts"`).WillReturnError(errors.New("connection reset"))

	ok, err := repo.TransitionStatus(context.Background(), nil, 7, models.AttemptSubmitted,
		repositories.StatusTransition{To: models.AttemptGraded})
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
}

func TestAttemptPostgreSQL_LockInProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("locks in progress attempt", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptPostgreSQL(db)

		mock.ExpectQuery(`SELECT \* FROM "attempts" WHERE .*status = .* FOR SHARE`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "exam_id", "student_id", "status"}).
				AddRow(7, 3, "student-1", "in_progress"))

		attempt, err := repo.LockInProgress(ctx, nil, 7)
		require.NoError(t, err)
		assert.Equal(t, uint(7), attempt.ID)
		assert.Equal(t, models.AttemptInProgress, attempt.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("submitted attempt is not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptPostgreSQL(db)

		mock.ExpectQuery(`SELECT \* FROM "attempts" .* FOR SHARE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.LockInProgress(ctx, nil, 7)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestAttemptPostgreSQL_UpsertAnswerIfNewer(t *testing.T) {
	ctx := context.Background()
	answer := func() *models.AttemptAnswer {
		return &models.AttemptAnswer{
			AttemptID:  7,
			QuestionID: 2,
			Value:      "B",
			SavedAt:    time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC),
		}
	}

	t.Run("newer snapshot value is written", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptPostgreSQL(db)

		mock.ExpectQuery(`INSERT INTO "attempt_answers" .* ON CONFLICT .* WHERE attempt_answers\.saved_at < excluded\.saved_at`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

		applied, err := repo.UpsertAnswerIfNewer(ctx, nil, answer())
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("older snapshot value is skipped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewAttemptPostgreSQL(db)

		mock.ExpectQuery(`INSERT INTO "attempt_answers" .* ON CONFLICT`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		applied, err := repo.UpsertAnswerIfNewer(ctx, nil, answer())
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestAttemptPostgreSQL_GetByExamAndStudentNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAttemptPostgreSQL(db)

	mock.ExpectQuery(`SELECT \* FROM "attempts" WHERE exam_id = \$1 AND student_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByExamAndStudent(context.Background(), nil, 3, "student-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRepository_WithTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "attempts"`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			_, err := repo.Attempt().RotateToken(ctx, tx, 7, "token-2")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewRepository(db, nil)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := repo.WithTransaction(ctx, func(tx *gorm.DB) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

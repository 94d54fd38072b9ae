package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newAttempt(examID uint, student string) *models.Attempt {
	return &models.Attempt{
		ExamID:    examID,
		StudentID: student,
		Status:    models.AttemptInProgress,
		StartedAt: t0,
		Deadline:  t0.Add(time.Hour),
	}
}

func TestAttemptStore_CreateUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	require.NoError(t, repo.Attempt().Create(ctx, nil, newAttempt(1, "s1")))
	err := repo.Attempt().Create(ctx, nil, newAttempt(1, "s1"))
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	require.NoError(t, repo.Attempt().Create(ctx, nil, newAttempt(2, "s1")))

	got, err := repo.Attempt().GetByExamAndStudent(ctx, nil, 2, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint(2), got.ID)

	_, err = repo.Attempt().GetByExamAndStudent(ctx, nil, 3, "s1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAttemptStore_TransitionStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	attempt := newAttempt(1, "s1")
	require.NoError(t, repo.Attempt().Create(ctx, nil, attempt))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Attempt().TransitionStatus(ctx, nil, attempt.ID, models.AttemptInProgress,
				repositories.StatusTransition{To: models.AttemptSubmitted})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	_, err := repo.Attempt().LockInProgress(ctx, nil, attempt.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	rotated, err := repo.Attempt().RotateToken(ctx, nil, attempt.ID, "late")
	require.NoError(t, err)
	assert.False(t, rotated)
}

func TestAttemptStore_Answers(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	store := repo.Attempt()

	require.NoError(t, store.UpsertAnswer(ctx, nil, &models.AttemptAnswer{AttemptID: 1, QuestionID: 5, Value: "A", SavedAt: t0.Add(time.Minute)}))
	require.NoError(t, store.UpsertAnswer(ctx, nil, &models.AttemptAnswer{AttemptID: 1, QuestionID: 5, Value: "C", SavedAt: t0.Add(2 * time.Minute)}))

	applied, err := store.UpsertAnswerIfNewer(ctx, nil, &models.AttemptAnswer{AttemptID: 1, QuestionID: 5, Value: "B", SavedAt: t0.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.False(t, applied, "equal timestamps keep the stored value")

	applied, err = store.UpsertAnswerIfNewer(ctx, nil, &models.AttemptAnswer{AttemptID: 1, QuestionID: 6, Value: "true", SavedAt: t0})
	require.NoError(t, err)
	assert.True(t, applied)

	answers, err := store.GetAnswers(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Equal(t, "C", answers[0].Value)
	assert.Equal(t, "true", answers[1].Value)

	require.NoError(t, store.SaveOutcomes(ctx, nil, 1, []repositories.AnswerOutcome{
		{QuestionID: 5, Points: 2, IsCorrect: true},
		{QuestionID: 7, Points: 0, Feedback: "No answer provided"},
	}, t0.Add(time.Hour)))

	answers, err = store.GetAnswers(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, answers, 3)
	assert.Equal(t, 2.0, *answers[0].Points)
	assert.Equal(t, "", answers[2].Value)
	assert.Equal(t, "No answer provided", answers[2].Feedback)
}

func TestRepository_WithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	attempt := newAttempt(1, "s1")
	require.NoError(t, repo.Attempt().Create(ctx, nil, attempt))

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		ok, err := repo.Attempt().TransitionStatus(ctx, tx, attempt.ID, models.AttemptInProgress,
			repositories.StatusTransition{To: models.AttemptSubmitted})
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, repo.Attempt().UpsertAnswer(ctx, tx, &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, SavedAt: t0}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.Attempt().GetByID(ctx, nil, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, got.Status)

	answers, err := repo.Attempt().GetAnswers(ctx, nil, attempt.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestAttemptStore_GetExpiredInProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	for i, student := range []string{"s1", "s2", "s3"} {
		a := newAttempt(1, student)
		a.Deadline = t0.Add(time.Duration(i+1) * time.Minute)
		require.NoError(t, repo.Attempt().Create(ctx, nil, a))
	}

	expired, err := repo.Attempt().GetExpiredInProgress(ctx, nil, t0.Add(2*time.Minute), 0, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1, "deadline equal to now is not expired")
	assert.Equal(t, "s1", expired[0].StudentID)

	expired, err = repo.Attempt().GetExpiredInProgress(ctx, nil, t0.Add(time.Hour), 0, 2)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "s1", expired[0].StudentID)

	expired, err = repo.Attempt().GetExpiredInProgress(ctx, nil, t0.Add(time.Hour), 2, 2)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "s3", expired[0].StudentID)
}

func TestLoadFixtures(t *testing.T) {
	repo := NewRepository()
	n, err := repo.LoadFixtures(strings.NewReader(`[
		{"id": 1, "title": "Anatomy", "duration_minutes": 30, "is_published": true,
		 "questions": [
			{"id": 2, "order": 2, "type": "true_false", "points": 1, "key": {"correct_bool": true}},
			{"id": 1, "order": 1, "type": "numeric", "points": 2, "key": {"correct_value": 3.14}}
		 ]}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exam, err := repo.Exam().GetByID(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ExamKindStandard, exam.Kind)
	require.Len(t, exam.Questions, 2)
	assert.Equal(t, uint(1), exam.Questions[0].ID)
	require.NotNil(t, exam.Questions[0].Key().CorrectValue)
	assert.Equal(t, 3.14, *exam.Questions[0].Key().CorrectValue)
}

func TestRepository_RollbackKeepsWritesFromOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	outside := newAttempt(2, "s2")

	var wg sync.WaitGroup
	started := make(chan struct{})
	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		require.NoError(t, repo.Attempt().Create(ctx, tx, newAttempt(1, "s1")))

		wg.Add(1)
		go func() {
			defer wg.Done()
			close(started)
			assert.NoError(t, repo.Attempt().Create(ctx, nil, outside))
		}()
		<-started
		time.Sleep(10 * time.Millisecond)
		return boom
	})
	require.ErrorIs(t, err, boom)
	wg.Wait()

	got, err := repo.Attempt().GetByID(ctx, nil, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.StudentID)

	_, err = repo.Attempt().GetByExamAndStudent(ctx, nil, 1, "s1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	next := newAttempt(3, "s3")
	require.NoError(t, repo.Attempt().Create(ctx, nil, next))
	assert.NotEqual(t, outside.ID, next.ID)
}

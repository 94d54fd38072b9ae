package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// cachedExam is the cache representation of an exam. Answer keys are hidden
// from the exam's JSON form, so they travel in a separate map.
type cachedExam struct {
	Exam models.Exam               `json:"exam"`
	Keys map[uint]models.AnswerKey `json:"keys"`
}

type cachedExamRepository struct {
	next   ExamRepository
	cache  cache.CacheService
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedExamRepository caches exam definitions in front of next. Exams
// are read on every session call and change only when republished.
func NewCachedExamRepository(next ExamRepository, c cache.CacheService, ttl time.Duration, logger *slog.Logger) ExamRepository {
	return &cachedExamRepository{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func ExamCacheKey(id uint) string {
	return fmt.Sprintf("exam:%d", id)
}

func (r *cachedExamRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	key := ExamCacheKey(id)

	var entry cachedExam
	err := r.cache.Get(ctx, key, &entry)
	if err == nil {
		exam := entry.Exam
		for i := range exam.Questions {
			exam.Questions[i].AnswerKey = datatypes.NewJSONType(entry.Keys[exam.Questions[i].ID])
		}
		return &exam, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("Exam cache read failed", "exam_id", id, "error", err)
	}

	exam, err := r.next.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	entry = cachedExam{Exam: *exam, Keys: make(map[uint]models.AnswerKey, len(exam.Questions))}
	for i := range exam.Questions {
		entry.Keys[exam.Questions[i].ID] = exam.Questions[i].Key()
	}
	if err := r.cache.Set(ctx, key, entry, r.ttl); err != nil {
		r.logger.Warn("Exam cache write failed", "exam_id", id, "error", err)
	}
	return exam, nil
}

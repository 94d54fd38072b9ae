package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"gorm.io/gorm"
)

type IntegrityEventPostgreSQL struct {
	db *gorm.DB
}

func NewIntegrityEventPostgreSQL(db *gorm.DB) repositories.IntegrityEventRepository {
	return &IntegrityEventPostgreSQL{db: db}
}

func (i *IntegrityEventPostgreSQL) Create(ctx context.Context, tx *gorm.DB, event *models.IntegrityEvent) error {
	db := i.getDB(tx)
	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record integrity event: %w", err)
	}
	return nil
}

func (i *IntegrityEventPostgreSQL) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]models.IntegrityEvent, error) {
	db := i.getDB(tx)
	var events []models.IntegrityEvent
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("occurred_at ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list integrity events: %w", err)
	}
	return events, nil
}

func (i *IntegrityEventPostgreSQL) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(attemptIDs))
	if len(attemptIDs) == 0 {
		return counts, nil
	}
	db := i.getDB(tx)

	var rows []struct {
		AttemptID uint
		Count     int
	}
	if err := db.WithContext(ctx).
		Model(&models.IntegrityEvent{}).
		Select("attempt_id, COUNT(*) AS count").
		Where("attempt_id IN ?", attemptIDs).
		Group("attempt_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count integrity events: %w", err)
	}

	for _, row := range rows {
		counts[row.AttemptID] = row.Count
	}
	return counts, nil
}

func (i *IntegrityEventPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return i.db
}

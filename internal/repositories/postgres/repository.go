package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"gorm.io/gorm"
)

// Repository is the gorm backed repositories.Repository
type Repository struct {
	db        *gorm.DB
	exam      repositories.ExamRepository
	attempt   repositories.AttemptRepository
	integrity repositories.IntegrityEventRepository
}

// NewRepository wires the postgres repositories. exam may wrap the plain
// exam repository, for example with a cache; nil uses NewExamPostgreSQL.
func NewRepository(db *gorm.DB, exam repositories.ExamRepository) *Repository {
	if exam == nil {
		exam = NewExamPostgreSQL(db)
	}
	return &Repository{
		db:        db,
		exam:      exam,
		attempt:   NewAttemptPostgreSQL(db),
		integrity: NewIntegrityEventPostgreSQL(db),
	}
}

func (r *Repository) Exam() repositories.ExamRepository                     { return r.exam }
func (r *Repository) Attempt() repositories.AttemptRepository               { return r.attempt }
func (r *Repository) IntegrityEvent() repositories.IntegrityEventRepository { return r.integrity }

func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateError maps gorm errors onto the repository sentinels. The
// database is opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repositories.ErrDuplicate, err)
	default:
		return err
	}
}

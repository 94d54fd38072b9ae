package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/config"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/pkg"
)

// openRepository builds the configured store. The returned cleanup closes
// everything that was opened, in reverse order.
func openRepository(cfg *config.Config, fixtures string, logger *slog.Logger) (repositories.Repository, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		repo := memory.NewRepository()
		if fixtures != "" {
			f, err := os.Open(fixtures)
			if err != nil {
				return nil, nil, fmt.Errorf("open fixtures: %w", err)
			}
			defer f.Close()

			n, err := repo.LoadFixtures(f)
			if err != nil {
				return nil, nil, fmt.Errorf("load fixtures: %w", err)
			}
			logger.Info("Loaded exam fixtures", "path", fixtures, "exams", n)
		}
		return repo, func() {}, nil

	case "postgres", "":
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}

		examCache, closeCache := newExamCache(cfg, logger)
		exams := repositories.NewCachedExamRepository(postgres.NewExamPostgreSQL(db), examCache, cfg.ExamCacheTTL, logger)
		repo := postgres.NewRepository(db, exams)

		return repo, func() {
			closeCache()
			if err := repo.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newExamCache prefers Redis and falls back to an in-process cache when Redis
// is not configured or unreachable.
func newExamCache(cfg *config.Config, logger *slog.Logger) (cache.CacheService, func()) {
	if cfg.RedisURL == "" {
		logger.Info("Redis not configured, using in-process exam cache")
		return cache.NewMemoryCache(), func() {}
	}

	client, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process exam cache", "error", err)
		return cache.NewMemoryCache(), func() {}
	}

	logger.Info("Connected to Redis")
	return cache.NewRedisCache(client, logger), func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close redis client", "error", err)
		}
	}
}

// buildServices wires the service layer on top of repo.
func buildServices(cfg *config.Config, repo repositories.Repository, logger *slog.Logger) (services.ServiceManager, func(), error) {
	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create event publisher: %w", err)
	}

	clock := session.SystemClock{}
	manager := services.NewServiceManager(services.Dependencies{
		Repo:      repo,
		Tokens:    session.NewTokenIssuer(cfg.SessionTokenSecret, cfg.SessionTokenGrace, clock),
		Clock:     clock,
		Publisher: publisher,
		Logger:    logger,
	})

	return manager, func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}, nil
}

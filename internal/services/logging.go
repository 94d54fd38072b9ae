package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, service string) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", service),
	}
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID string, resourceID uint, resourceType string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		// Expected outcomes of the session state machine are not failures
		switch {
		case IsValidation(err) || IsBusinessRule(err) || IsGradingRejected(err):
			level = slog.LevelWarn
			status = "validation_error"
		case errors.Is(err, ErrInvalidSessionToken) || IsUnauthorized(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		case IsConflict(err) || errors.Is(err, ErrUnknownQuestion) || errors.Is(err, ErrExamNotPublished):
			level = slog.LevelInfo
			status = "rejected"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Uint64("resource_id", uint64(resourceID)),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var (
			validationErr ValidationErrors
			businessErr   *BusinessRuleError
		)
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		} else if errors.As(err, &businessErr) {
			attrs = append(attrs, slog.String("business_rule", businessErr.Rule))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// ===== SECURITY LOGGING =====

type SecurityEventType string

const (
	SecurityEventInvalidToken   SecurityEventType = "invalid_token"
	SecurityEventStaleToken     SecurityEventType = "stale_token"
	SecurityEventForeignAttempt SecurityEventType = "foreign_attempt"
)

func (l *ServiceLogger) LogSecurityEvent(ctx context.Context, eventType SecurityEventType, userID, description string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("security_event", string(eventType)),
		slog.String("user_id", userID),
	}, attrs...)

	l.logger.LogAttrs(ctx, slog.LevelWarn, fmt.Sprintf("Security: %s", description), attrs...)
}

// ===== HELPERS =====

// ContextualLogger times one operation and logs its outcome
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	userID    string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID uint, resourceType string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.userID, resourceID, resourceType, time.Since(cl.startTime), err)
}

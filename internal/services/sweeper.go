package services

import (
	"context"
	"log/slog"
	"time"
)

// RunExpirySweeper submits overdue attempts every interval until ctx is
// cancelled. Attempts are also finalized lazily on their next request, so a
// missed tick only delays the outcome.
func RunExpirySweeper(ctx context.Context, attempts AttemptService, interval time.Duration, batch int, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Expiry sweeper started", "interval", interval, "batch_size", batch)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := attempts.SubmitExpired(ctx, batch); err != nil && ctx.Err() == nil {
				logger.Error("Expiry sweep failed", "error", err)
			}
		}
	}
}

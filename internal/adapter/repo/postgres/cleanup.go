package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupService prunes append-only search-history rows beyond a retention
// window. History rows are never deleted by the core's normal operation;
// this is purely an operator-configured storage retention policy.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
}

// NewCleanupService constructs a CleanupService. A non-positive
// retentionDays falls back to 90.
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays}
}

// CleanupOldData deletes search_history rows older than the retention
// window, plus any stale request_queue rows left behind by a crash between
// enqueue and claim.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.RetentionDays)

	historyTag, err := s.Pool.Exec(ctx, `DELETE FROM search_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.search_history: %w", err)
	}

	queueTag, err := s.Pool.Exec(ctx, `
		DELETE FROM request_queue rq
		WHERE rq.scheduled_at < $1
		  AND NOT EXISTS (
		      SELECT 1 FROM search_registry sr
		      WHERE sr.id = rq.registry_id AND sr.state = 'queued'
		  )
	`, cutoff)
	if err != nil {
		return fmt.Errorf("op=cleanup.request_queue: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_history", historyTag.RowsAffected()),
		slog.Int64("deleted_orphan_queue_rows", queueTag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic runs CleanupOldData once immediately and then on every tick
// of interval until ctx is cancelled. A non-positive interval falls back
// to daily.
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}

package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"travelogue/pkg/db"
)

// Run executes start-up maintenance: cache pruning and query planner upkeep.
// Failures are logged, never fatal. It blocks until completion.
func Run(ctx context.Context, d *db.DB, cacheTTL time.Duration) {
	slog.Info("Starting database maintenance...")

	if n, err := pruneCache(ctx, d, cacheTTL); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed", "removed", n)
	}

	if _, err := d.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		slog.Warn("PRAGMA optimize failed", "error", err)
	}
}

func pruneCache(ctx context.Context, d *db.DB, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := d.PruneCache(ctx, ttl)
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return n, nil
}

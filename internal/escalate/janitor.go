package escalate

import (
	"context"
	"log/slog"
	"time"
)

const janitorInterval = 5 * time.Minute

// StartJanitor runs a background goroutine that periodically sweeps
// abandoned escalation state: sessions older than ttl whose agent never
// ran cleanup. Sessions with a still-live watcher are left alone.
func StartJanitor(ctx context.Context, coord *Coordinator, ttl time.Duration) {
	ticker := time.NewTicker(janitorInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("janitor started", "interval", janitorInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepStaleSessions(ctx, coord, ttl)
			case <-ctx.Done():
				slog.Info("janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepStaleSessions(ctx context.Context, coord *Coordinator, ttl time.Duration) {
	stale, err := coord.repo.ListSessionsBefore(ctx, time.Now().Add(-ttl))
	if err != nil {
		slog.Error("janitor failed to list stale sessions", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	slog.Info("janitor found stale sessions", "count", len(stale))

	cleaned := 0
	for _, session := range stale {
		handle, err := coord.repo.GetWatcher(ctx, session.ID)
		if err != nil {
			slog.Warn("janitor watcher lookup failed", "session_id", session.ID, "error", err)
			continue
		}
		if handle != nil && processAlive(handle.PID) {
			continue
		}

		slog.Info("janitor cleaning up session",
			"session_id", session.ID,
			"created_at", session.CreatedAt)
		coord.Cleanup(ctx, session.ID)
		cleaned++
	}

	if cleaned > 0 {
		slog.Info("janitor cleanup completed", "cleaned", cleaned)
	}
}

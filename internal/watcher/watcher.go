// Package watcher implements the detached per-session poller that races
// Slack replies against terminal input. Each escalated question gets its own
// watcher process; the newest watcher for a session id always wins.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/escalate"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

// Outcome is the terminal state of a watcher run.
type Outcome int

const (
	// OutcomeFound means this watcher stored a Slack answer.
	OutcomeFound Outcome = iota
	// OutcomeTimedOut means no reply arrived before the deadline.
	OutcomeTimedOut
	// OutcomeSuperseded means a newer watcher or another writer took over.
	OutcomeSuperseded
	// OutcomeStopped means the process was asked to shut down.
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Run polls the session until it finds an answer, times out or is
// superseded. It registers its own pid on entry, so when a question is
// re-asked under the same session id the replacement watcher takes
// ownership and the old one exits on its next tick. Each tick checks in a
// fixed order: still the registered watcher, no answer stored yet, then a
// live reply check.
func Run(ctx context.Context, coord *escalate.Coordinator, repo store.Repository, cfg *config.Config, sessionID string) Outcome {
	pid := os.Getpid()

	if err := repo.SaveWatcher(ctx, sessionID, pid); err != nil {
		// The ownership check below resolves whatever state we raced with.
		slog.Warn("failed to register watcher", "session_id", sessionID, "pid", pid, "error", err)
	}
	slog.Info("watcher started",
		"session_id", sessionID,
		"pid", pid,
		"interval", cfg.WatchInterval,
		"timeout", cfg.WatchTimeout)

	deadline := time.NewTimer(cfg.WatchTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.WatchInterval)
	defer ticker.Stop()

	for {
		if outcome, done := tick(ctx, coord, repo, sessionID, pid); done {
			return outcome
		}

		select {
		case <-ctx.Done():
			slog.Info("watcher shutting down", "session_id", sessionID, "reason", ctx.Err())
			return OutcomeStopped
		case <-deadline.C:
			slog.Info("watcher timed out", "session_id", sessionID, "timeout", cfg.WatchTimeout)
			return OutcomeTimedOut
		case <-ticker.C:
		}
	}
}

func tick(ctx context.Context, coord *escalate.Coordinator, repo store.Repository, sessionID string, pid int) (Outcome, bool) {
	handle, err := repo.GetWatcher(ctx, sessionID)
	if err != nil {
		slog.Warn("watcher handle lookup failed", "session_id", sessionID, "error", err)
		return 0, false
	}
	if handle == nil || handle.PID != pid {
		slog.Info("watcher superseded", "session_id", sessionID, "pid", pid)
		return OutcomeSuperseded, true
	}

	answer, err := repo.GetAnswer(ctx, sessionID)
	if err != nil {
		slog.Warn("answer lookup failed", "session_id", sessionID, "error", err)
		return 0, false
	}
	if answer != nil {
		slog.Info("answer already recorded, watcher exiting", "session_id", sessionID)
		return OutcomeSuperseded, true
	}

	if reply, found := coord.EvaluateOnce(ctx, sessionID); found {
		slog.Info("watcher found answer", "session_id", sessionID, "answer", reply)
		return OutcomeFound, true
	}
	return 0, false
}

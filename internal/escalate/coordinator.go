package escalate

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
	"github.com/claw4business/claude-code-slackbot/internal/slack"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

// Gateway is the chat surface questions are published through.
type Gateway interface {
	PostMessage(ctx context.Context, channel, text string) (string, error)
	PostThreadReply(ctx context.Context, channel, threadTS, text string) error
	FetchRepliesSince(ctx context.Context, channel, threadTS, afterTS string) ([]slack.Message, error)
}

// WatcherSpawner starts the detached watcher process for a session and
// returns its pid.
type WatcherSpawner interface {
	Spawn(ctx context.Context, sessionID string) (int, error)
}

// Coordinator owns the escalation lifecycle: publish, watch, answer,
// cleanup. Escalate never blocks on a reply and never fails the hook; the
// worst outcome is a terminal-only question.
type Coordinator struct {
	cfg         *config.Config
	repo        store.Repository
	gateway     Gateway
	spawner     WatcherSpawner
	executable  string
	stopProcess func(pid int) error
}

// NewCoordinator wires the escalation coordinator. spawner may be nil for
// callers that never publish.
func NewCoordinator(cfg *config.Config, repo store.Repository, gateway Gateway, spawner WatcherSpawner) *Coordinator {
	executable, err := os.Executable()
	if err != nil {
		// Fall back to a PATH lookup by the agent's shell.
		executable = "slackbot"
	}
	return &Coordinator{
		cfg:         cfg,
		repo:        repo,
		gateway:     gateway,
		spawner:     spawner,
		executable:  executable,
		stopProcess: terminateProcess,
	}
}

// Escalate publishes the question set and returns the instructions the
// agent needs to run the terminal-versus-Slack race. It never returns an
// error: configuration or publish failures degrade to a terminal-only
// question.
func (c *Coordinator) Escalate(ctx context.Context, sessionID string, questions []domain.Question) Instructions {
	if len(questions) == 0 {
		return Instructions{SessionID: sessionID, Skip: true}
	}

	ins := Instructions{
		SessionID: sessionID,
		Display:   FormatTerminalQuestions(questions),
		Degraded:  true,
	}

	// Leftovers from a previous question under the same session id must
	// not satisfy this question's wait gate.
	c.clearStaleState(ctx, sessionID)

	threadTS := ""
	if !c.cfg.SlackConfigured() {
		slog.Info("Slack not configured, asking in terminal only", "session_id", sessionID)
	} else {
		ts, err := c.gateway.PostMessage(ctx, c.cfg.SlackChannel, FormatSlackMessage(questions))
		switch {
		case err == nil:
			threadTS = ts
		case slack.IsAuthError(err):
			slog.Warn("Slack rejected credentials, asking in terminal only",
				"session_id", sessionID, "error", err)
		default:
			slog.Warn("Slack publish failed, asking in terminal only",
				"session_id", sessionID, "error", err)
		}
	}

	// The session row is written even for terminal-only questions so that
	// cleanup and the one-shot check see a consistent picture.
	c.persistSession(ctx, sessionID, questions, threadTS)

	if threadTS == "" {
		return ins
	}

	ins.Degraded = false
	ins.Wait = newWaitStep(c.executable, sessionID, c.cfg.WaitTimeout)
	ins.AnswerCheck = newCheckStep(c.executable, sessionID)

	if c.spawner == nil {
		return ins
	}
	pid, err := c.spawner.Spawn(ctx, sessionID)
	if err != nil {
		// Terminal input still works without a watcher; log and move on.
		slog.Error("failed to spawn watcher", "session_id", sessionID, "error", err)
		return ins
	}
	if err := c.repo.SaveWatcher(ctx, sessionID, pid); err != nil {
		slog.Warn("failed to record watcher pid",
			"session_id", sessionID, "pid", pid, "error", err)
	}
	slog.Info("watcher spawned", "session_id", sessionID, "pid", pid)

	return ins
}

// Cleanup tears down everything a session left behind: the watcher
// process, its handle, the stored answer, the session row and the
// diagnostic log. Every step tolerates the state already being gone, so
// running it twice is safe.
func (c *Coordinator) Cleanup(ctx context.Context, sessionID string) {
	if handle, err := c.repo.GetWatcher(ctx, sessionID); err != nil {
		slog.Warn("watcher lookup failed", "session_id", sessionID, "error", err)
	} else if handle != nil {
		if err := c.stopProcess(handle.PID); err != nil {
			slog.Debug("watcher already gone", "session_id", sessionID, "pid", handle.PID)
		}
	}

	if err := c.repo.DeleteWatcher(ctx, sessionID); err != nil {
		slog.Warn("failed to delete watcher handle", "session_id", sessionID, "error", err)
	}
	if err := c.repo.DeleteAnswer(ctx, sessionID); err != nil {
		slog.Warn("failed to delete answer", "session_id", sessionID, "error", err)
	}
	if err := c.repo.DeleteSession(ctx, sessionID); err != nil {
		slog.Warn("failed to delete session", "session_id", sessionID, "error", err)
	}
	if err := os.Remove(c.cfg.SessionLogPath(sessionID)); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove session log", "session_id", sessionID, "error", err)
	}
}

// clearStaleState drops the previous question's answer and watcher
// handle. A still-running old watcher is not signaled here; losing its
// handle makes it exit superseded on its next tick.
func (c *Coordinator) clearStaleState(ctx context.Context, sessionID string) {
	if err := c.repo.DeleteWatcher(ctx, sessionID); err != nil {
		slog.Warn("failed to delete stale watcher handle", "session_id", sessionID, "error", err)
	}
	if err := c.repo.DeleteAnswer(ctx, sessionID); err != nil {
		slog.Warn("failed to clear stale answer", "session_id", sessionID, "error", err)
	}
}

func (c *Coordinator) persistSession(ctx context.Context, sessionID string, questions []domain.Question, threadTS string) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:         sessionID,
		Questions:  questions,
		Channel:    c.cfg.SlackChannel,
		ThreadTS:   threadTS,
		BaselineTS: threadTS,
		LastSeenTS: threadTS,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.repo.SaveSession(ctx, session); err != nil {
		slog.Error("failed to persist session", "session_id", sessionID, "error", err)
	}
}

// terminateProcess sends SIGTERM. Callers treat an error as the process
// being gone already.
func terminateProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

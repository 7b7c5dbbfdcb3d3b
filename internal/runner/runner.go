// Package runner launches and supervises Claude Code task sessions. The tmux
// backend runs them in detached local sessions; the Docker backend runs them
// in one-shot containers.
package runner

import (
	"context"
	"errors"
	"io"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// Errors shared by the backends.
var (
	ErrNoServer           = errors.New("no tmux server running")
	ErrSessionExists      = errors.New("session already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSessionName = errors.New("invalid session name")
)

// Runner starts task sessions, reports on them and tears them down.
type Runner interface {
	// Launch starts the task and returns its backend runtime id.
	Launch(ctx context.Context, task *domain.Task) (string, error)

	// IsRunning reports whether the task session is still alive.
	IsRunning(ctx context.Context, runtimeID string) (bool, error)

	// Stop tears the task session down. A session that is already gone is
	// not an error.
	Stop(ctx context.Context, runtimeID string) error

	// TailLog returns up to the last n bytes of the task's log output.
	TailLog(ctx context.Context, task *domain.Task, n int64) (string, error)

	// FollowLog streams the task's output from the recent tail onward,
	// blocking in Read until more arrives. The stream ends when ctx is
	// canceled or the backend discards the session's output.
	FollowLog(ctx context.Context, task *domain.Task) (io.ReadCloser, error)
}

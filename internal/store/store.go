// Package store provides persistence for escalated sessions, answers,
// watcher handles, and launcher state. All processes of the bridge (hook,
// watcher, wait gate, launcher daemon) coordinate exclusively through it.
package store

import (
	"context"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// Repository defines the storage interface shared across processes.
type Repository interface {
	// SaveSession inserts or replaces the escalation state for a session.
	SaveSession(ctx context.Context, session *domain.Session) error
	// GetSession returns the session state, or nil if none exists.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// DeleteSession removes the session state. Missing rows are a no-op.
	DeleteSession(ctx context.Context, sessionID string) error
	// ListSessionsBefore returns sessions created before the cutoff.
	ListSessionsBefore(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)

	// AdvanceCursor moves the reply cursor forward to ts. The cursor never
	// moves backward; a stale ts reports false with no change.
	AdvanceCursor(ctx context.Context, sessionID, ts string) (bool, error)

	// PutAnswer records the reply for a session. The first writer wins;
	// the return value reports whether this call was the winner.
	PutAnswer(ctx context.Context, sessionID, reply string) (bool, error)
	// GetAnswer returns the stored answer, or nil if none exists.
	GetAnswer(ctx context.Context, sessionID string) (*domain.Answer, error)
	// DeleteAnswer removes the stored answer. Missing rows are a no-op.
	DeleteAnswer(ctx context.Context, sessionID string) error

	// SaveWatcher records the watcher process for a session, replacing any
	// previous handle.
	SaveWatcher(ctx context.Context, sessionID string, pid int) error
	// GetWatcher returns the watcher handle, or nil if none exists.
	GetWatcher(ctx context.Context, sessionID string) (*domain.WatcherHandle, error)
	// DeleteWatcher removes the watcher handle. Missing rows are a no-op.
	DeleteWatcher(ctx context.Context, sessionID string) error

	// SaveTask inserts or replaces a launched task.
	SaveTask(ctx context.Context, task *domain.Task) error
	// GetTask returns a task by session name, or nil if none exists.
	GetTask(ctx context.Context, sessionName string) (*domain.Task, error)
	// ListTasks returns all tracked tasks, oldest first.
	ListTasks(ctx context.Context) ([]*domain.Task, error)
	// DeleteTask removes a task. Missing rows are a no-op.
	DeleteTask(ctx context.Context, sessionName string) error

	// MarkProcessed records a channel message as handled.
	MarkProcessed(ctx context.Context, channel, ts string) error
	// IsProcessed reports whether a channel message was already handled.
	IsProcessed(ctx context.Context, channel, ts string) (bool, error)
	// TrimProcessed drops all but the newest keep processed markers.
	TrimProcessed(ctx context.Context, channel string, keep int) error

	// GetLauncherCursor returns the newest handled message timestamp for a
	// channel, or "" if none is stored.
	GetLauncherCursor(ctx context.Context, channel string) (string, error)
	// SetLauncherCursor stores the newest handled message timestamp.
	SetLauncherCursor(ctx context.Context, channel, ts string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying database handle.
	Close() error
}

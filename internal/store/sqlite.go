package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency. The hook, watcher
	// and wait processes all open this file independently.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		questions_json TEXT NOT NULL,
		channel TEXT NOT NULL DEFAULT '',
		thread_ts TEXT NOT NULL DEFAULT '',
		baseline_ts TEXT NOT NULL DEFAULT '',
		last_seen_ts TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS answers (
		session_id TEXT PRIMARY KEY,
		reply TEXT NOT NULL,
		answered_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watchers (
		session_id TEXT PRIMARY KEY,
		pid INTEGER NOT NULL,
		started_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		session_name TEXT PRIMARY KEY,
		channel TEXT NOT NULL,
		thread_ts TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL,
		runner TEXT NOT NULL,
		runtime_id TEXT NOT NULL DEFAULT '',
		log_path TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_started ON tasks(started_at);

	CREATE TABLE IF NOT EXISTS processed_messages (
		channel TEXT NOT NULL,
		ts TEXT NOT NULL,
		seen_at INTEGER NOT NULL,
		PRIMARY KEY (channel, ts)
	);

	CREATE TABLE IF NOT EXISTS launcher_cursor (
		channel TEXT PRIMARY KEY,
		last_checked_ts TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession inserts or replaces the escalation state for a session.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	questionsJSON, err := json.Marshal(session.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}

	query := `
	INSERT INTO sessions (session_id, questions_json, channel, thread_ts, baseline_ts, last_seen_ts, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		questions_json = excluded.questions_json,
		channel = excluded.channel,
		thread_ts = excluded.thread_ts,
		baseline_ts = excluded.baseline_ts,
		last_seen_ts = excluded.last_seen_ts,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, string(questionsJSON), session.Channel,
		session.ThreadTS, session.BaselineTS, session.LastSeenTS,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession retrieves the escalation state for a session.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, questions_json, channel, thread_ts,
		       baseline_ts, last_seen_ts, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.Session
	var questionsJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &questionsJSON, &session.Channel, &session.ThreadTS,
		&session.BaselineTS, &session.LastSeenTS, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(questionsJSON), &session.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	session.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &session, nil
}

// DeleteSession removes the escalation state for a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	return withConflictRetry("delete session", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// ListSessionsBefore returns sessions created before the cutoff.
func (s *SQLiteStore) ListSessionsBefore(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	query := `
		SELECT session_id, questions_json, channel, thread_ts,
		       baseline_ts, last_seen_ts, created_at, updated_at
		FROM sessions WHERE created_at < ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		var session domain.Session
		var questionsJSON string
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&session.ID, &questionsJSON, &session.Channel, &session.ThreadTS,
			&session.BaselineTS, &session.LastSeenTS, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		if err := json.Unmarshal([]byte(questionsJSON), &session.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		session.CreatedAt = time.Unix(createdAt, 0).UTC()
		session.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// AdvanceCursor moves the reply cursor forward to ts. Slack timestamps in a
// single workspace are fixed-width "seconds.fraction" strings, so the string
// comparison below orders them numerically. The guard makes the cursor
// monotone regardless of how many watcher or check processes race on it.
func (s *SQLiteStore) AdvanceCursor(ctx context.Context, sessionID, ts string) (bool, error) {
	var advanced bool
	err := withConflictRetry("advance cursor", func() error {
		query := `
			UPDATE sessions SET last_seen_ts = ?, updated_at = ?
			WHERE session_id = ? AND last_seen_ts < ?`
		result, err := s.db.ExecContext(ctx, query, ts, time.Now().Unix(), sessionID, ts)
		if err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		advanced = rows > 0
		return nil
	})
	return advanced, err
}

// PutAnswer records the reply for a session. The first writer wins and
// later writes are ignored, so a watcher and a one-shot check racing on the
// same reply cannot overwrite each other.
func (s *SQLiteStore) PutAnswer(ctx context.Context, sessionID, reply string) (bool, error) {
	var won bool
	err := withConflictRetry("put answer", func() error {
		query := `
			INSERT INTO answers (session_id, reply, answered_at)
			VALUES (?, ?, ?)
			ON CONFLICT(session_id) DO NOTHING`
		result, err := s.db.ExecContext(ctx, query, sessionID, reply, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		won = rows > 0
		return nil
	})
	return won, err
}

// GetAnswer retrieves the stored answer for a session.
func (s *SQLiteStore) GetAnswer(ctx context.Context, sessionID string) (*domain.Answer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, reply, answered_at FROM answers WHERE session_id = ?`, sessionID)

	var answer domain.Answer
	var answeredAt int64

	err := row.Scan(&answer.SessionID, &answer.Reply, &answeredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan answer row: %w", err)
	}

	answer.AnsweredAt = time.Unix(answeredAt, 0).UTC()
	return &answer, nil
}

// DeleteAnswer removes the stored answer for a session.
func (s *SQLiteStore) DeleteAnswer(ctx context.Context, sessionID string) error {
	return withConflictRetry("delete answer", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete answer: %w", err)
		}
		return nil
	})
}

// SaveWatcher records the watcher process for a session.
func (s *SQLiteStore) SaveWatcher(ctx context.Context, sessionID string, pid int) error {
	query := `
	INSERT INTO watchers (session_id, pid, started_at)
	VALUES (?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		pid = excluded.pid,
		started_at = excluded.started_at`

	_, err := s.db.ExecContext(ctx, query, sessionID, pid, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert watcher: %w", err)
	}
	return nil
}

// GetWatcher retrieves the watcher handle for a session.
func (s *SQLiteStore) GetWatcher(ctx context.Context, sessionID string) (*domain.WatcherHandle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, pid, started_at FROM watchers WHERE session_id = ?`, sessionID)

	var handle domain.WatcherHandle
	var startedAt int64

	err := row.Scan(&handle.SessionID, &handle.PID, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan watcher row: %w", err)
	}

	handle.StartedAt = time.Unix(startedAt, 0).UTC()
	return &handle, nil
}

// DeleteWatcher removes the watcher handle for a session.
func (s *SQLiteStore) DeleteWatcher(ctx context.Context, sessionID string) error {
	return withConflictRetry("delete watcher", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM watchers WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete watcher: %w", err)
		}
		return nil
	})
}

// SaveTask inserts or replaces a launched task.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *domain.Task) error {
	query := `
	INSERT INTO tasks (session_name, channel, thread_ts, prompt, runner, runtime_id, log_path, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_name) DO UPDATE SET
		channel = excluded.channel,
		thread_ts = excluded.thread_ts,
		prompt = excluded.prompt,
		runner = excluded.runner,
		runtime_id = excluded.runtime_id,
		log_path = excluded.log_path,
		started_at = excluded.started_at`

	_, err := s.db.ExecContext(ctx, query,
		task.SessionName, task.Channel, task.ThreadTS, task.Prompt,
		task.Runner, task.RuntimeID, task.LogPath, task.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by session name.
func (s *SQLiteStore) GetTask(ctx context.Context, sessionName string) (*domain.Task, error) {
	query := `
		SELECT session_name, channel, thread_ts, prompt, runner, runtime_id, log_path, started_at
		FROM tasks WHERE session_name = ?`

	row := s.db.QueryRowContext(ctx, query, sessionName)

	var task domain.Task
	var startedAt int64

	err := row.Scan(
		&task.SessionName, &task.Channel, &task.ThreadTS, &task.Prompt,
		&task.Runner, &task.RuntimeID, &task.LogPath, &startedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan task row: %w", err)
	}

	task.StartedAt = time.Unix(startedAt, 0).UTC()
	return &task, nil
}

// ListTasks returns all tracked tasks, oldest first.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	query := `
		SELECT session_name, channel, thread_ts, prompt, runner, runtime_id, log_path, started_at
		FROM tasks ORDER BY started_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close task rows", "error", closeErr)
		}
	}()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		var startedAt int64

		if err := rows.Scan(
			&task.SessionName, &task.Channel, &task.ThreadTS, &task.Prompt,
			&task.Runner, &task.RuntimeID, &task.LogPath, &startedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}

		task.StartedAt = time.Unix(startedAt, 0).UTC()
		tasks = append(tasks, &task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// DeleteTask removes a task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, sessionName string) error {
	return withConflictRetry("delete task", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE session_name = ?`, sessionName)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// MarkProcessed records a channel message as handled.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, channel, ts string) error {
	query := `
	INSERT INTO processed_messages (channel, ts, seen_at)
	VALUES (?, ?, ?)
	ON CONFLICT(channel, ts) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, channel, ts, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// IsProcessed reports whether a channel message was already handled.
func (s *SQLiteStore) IsProcessed(ctx context.Context, channel, ts string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_messages WHERE channel = ? AND ts = ?`, channel, ts)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scan processed row: %w", err)
	}
	return true, nil
}

// TrimProcessed drops all but the newest keep processed markers so the
// table stays bounded on long-lived channels.
func (s *SQLiteStore) TrimProcessed(ctx context.Context, channel string, keep int) error {
	query := `
	DELETE FROM processed_messages
	WHERE channel = ? AND ts NOT IN (
		SELECT ts FROM processed_messages WHERE channel = ?
		ORDER BY ts DESC LIMIT ?
	)`

	_, err := s.db.ExecContext(ctx, query, channel, channel, keep)
	if err != nil {
		return fmt.Errorf("trim processed: %w", err)
	}
	return nil
}

// GetLauncherCursor returns the newest handled message timestamp for a channel.
func (s *SQLiteStore) GetLauncherCursor(ctx context.Context, channel string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_checked_ts FROM launcher_cursor WHERE channel = ?`, channel)

	var ts string
	err := row.Scan(&ts)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan launcher cursor: %w", err)
	}
	return ts, nil
}

// SetLauncherCursor stores the newest handled message timestamp for a channel.
func (s *SQLiteStore) SetLauncherCursor(ctx context.Context, channel, ts string) error {
	query := `
	INSERT INTO launcher_cursor (channel, last_checked_ts)
	VALUES (?, ?)
	ON CONFLICT(channel) DO UPDATE SET
		last_checked_ts = excluded.last_checked_ts`

	_, err := s.db.ExecContext(ctx, query, channel, ts)
	if err != nil {
		return fmt.Errorf("set launcher cursor: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

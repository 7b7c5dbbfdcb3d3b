package domain

import (
	"time"
)

// Answer is the stored reply for a session. The first writer wins and the
// value stays immutable until the session is cleaned up.
type Answer struct {
	SessionID  string    `json:"session_id"`
	Reply      string    `json:"reply"`
	AnsweredAt time.Time `json:"answered_at"`
}

// WatcherHandle records the background watcher process for a session.
// At most one live watcher exists per session.
type WatcherHandle struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

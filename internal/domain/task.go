package domain

import (
	"time"
)

// Task is a Claude Code run launched from a channel mention.
type Task struct {
	SessionName string    `json:"session_name"`
	Channel     string    `json:"channel"`
	ThreadTS    string    `json:"thread_ts"`
	Prompt      string    `json:"prompt"`
	Runner      string    `json:"runner"`
	RuntimeID   string    `json:"runtime_id"`
	LogPath     string    `json:"log_path"`
	StartedAt   time.Time `json:"started_at"`
}

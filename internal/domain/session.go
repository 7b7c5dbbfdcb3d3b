// Package domain contains core domain types for the Slack escalation bridge.
package domain

import (
	"time"
)

// Option is a single selectable answer offered by a question.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Question is one question the agent wants the user to answer.
type Question struct {
	Text        string   `json:"question"`
	Header      string   `json:"header,omitempty"`
	Options     []Option `json:"options,omitempty"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
}

// Session holds the persisted state of one escalated question set.
type Session struct {
	ID         string     `json:"session_id"`
	Questions  []Question `json:"questions"`
	Channel    string     `json:"channel,omitempty"`
	ThreadTS   string     `json:"thread_ts,omitempty"`
	BaselineTS string     `json:"baseline_ts,omitempty"`
	LastSeenTS string     `json:"last_seen_ts,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Published reports whether the question set reached the channel.
func (s *Session) Published() bool {
	return s.ThreadTS != ""
}

// Cursor returns the timestamp replies must be strictly newer than.
func (s *Session) Cursor() string {
	if s.LastSeenTS != "" {
		return s.LastSeenTS
	}
	return s.BaselineTS
}

// FirstOptions returns the options of the first question, which drive
// reply normalization.
func (s *Session) FirstOptions() []Option {
	if len(s.Questions) == 0 {
		return nil
	}
	return s.Questions[0].Options
}

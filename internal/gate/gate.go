// Package gate blocks a foreground agent command until a stored answer
// appears. It watches the answer artifact only and never talks to Slack;
// the background watcher owns all chat traffic.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/store"
)

// Output tokens of the wait command. The escalation instructions quote
// these verbatim and the agent string-matches them.
const (
	AnswerPrefix  = "SLACK_ANSWER: "
	NoAnswerToken = "NO_ANSWER"
)

// Wait blocks until an answer is stored for the session or the timeout
// elapses, checking every pollInterval. It returns the answer and whether
// one was found.
func Wait(ctx context.Context, repo store.Repository, sessionID string, timeout, pollInterval time.Duration) (string, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		answer, err := repo.GetAnswer(ctx, sessionID)
		if err != nil {
			// Transient lookup failures just mean another poll.
			slog.Warn("answer lookup failed", "session_id", sessionID, "error", err)
		} else if answer != nil && answer.Reply != "" {
			return answer.Reply, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			return "", false
		case <-ticker.C:
		}
	}
}

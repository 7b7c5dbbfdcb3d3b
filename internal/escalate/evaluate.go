package escalate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// EvaluateOnce runs a single reply check for a session. It reports an
// already-stored answer without touching Slack, otherwise it fetches new
// thread replies, normalizes the newest one, stores it and posts a
// confirmation into the thread. The second result is false when no answer
// is available yet; transport errors count as "no answer this tick".
func (c *Coordinator) EvaluateOnce(ctx context.Context, sessionID string) (string, bool) {
	if answer, err := c.repo.GetAnswer(ctx, sessionID); err != nil {
		slog.Warn("answer lookup failed", "session_id", sessionID, "error", err)
		return "", false
	} else if answer != nil && answer.Reply != "" {
		return answer.Reply, true
	}

	session, err := c.repo.GetSession(ctx, sessionID)
	if err != nil {
		slog.Warn("session lookup failed", "session_id", sessionID, "error", err)
		return "", false
	}
	if session == nil || !session.Published() {
		return "", false
	}

	replies, err := c.gateway.FetchRepliesSince(ctx, session.Channel, session.ThreadTS, session.Cursor())
	if err != nil {
		slog.Warn("fetch replies failed", "session_id", sessionID, "error", err)
		return "", false
	}
	if len(replies) == 0 {
		return "", false
	}

	newest := replies[0]
	for _, m := range replies[1:] {
		if domain.CompareTS(m.TS, newest.TS) > 0 {
			newest = m
		}
	}

	if _, err := c.repo.AdvanceCursor(ctx, sessionID, newest.TS); err != nil {
		slog.Warn("cursor advance failed", "session_id", sessionID, "error", err)
	}

	normalized := NormalizeReply(newest.Text, session.FirstOptions())
	if normalized == "" {
		return "", false
	}

	won, err := c.repo.PutAnswer(ctx, sessionID, normalized)
	if err != nil {
		slog.Error("failed to store answer", "session_id", sessionID, "error", err)
		return "", false
	}
	if !won {
		// A concurrent watcher or check stored an answer first; that one
		// is the answer of record.
		if stored, err := c.repo.GetAnswer(ctx, sessionID); err == nil && stored != nil {
			return stored.Reply, true
		}
		return normalized, true
	}

	slog.Info("found answer", "session_id", sessionID, "answer", normalized)
	c.confirmAnswer(ctx, session, normalized)

	return normalized, true
}

func (c *Coordinator) confirmAnswer(ctx context.Context, session *domain.Session, answer string) {
	text := fmt.Sprintf(":white_check_mark: Got it! Answering with: *%s*", answer)
	if err := c.gateway.PostThreadReply(ctx, session.Channel, session.ThreadTS, text); err != nil {
		slog.Warn("failed to post confirmation", "session_id", session.ID, "error", err)
	}
}

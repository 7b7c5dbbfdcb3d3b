// Package launcher implements the channel-polling daemon that turns
// "@bot /claude <task>" messages into Claude Code sessions and reports their
// results back into the thread.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
	"github.com/claw4business/claude-code-slackbot/internal/runner"
	"github.com/claw4business/claude-code-slackbot/internal/slack"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

const (
	// processedKeep bounds the dedupe set per channel.
	processedKeep = 100
	// summaryTailBytes is how much of the task log the completion summary
	// quotes.
	summaryTailBytes = 500
)

// Chat is the Slack surface the launcher needs.
type Chat interface {
	FetchHistory(ctx context.Context, channel string, limit int) ([]slack.Message, error)
	PostThreadReply(ctx context.Context, channel, threadTS, text string) error
	AuthTest(ctx context.Context) (*slack.Identity, error)
}

// Launcher polls the channel for task commands and supervises the sessions
// it starts.
type Launcher struct {
	cfg       *config.Config
	repo      store.Repository
	chat      Chat
	runner    runner.Runner
	botUserID string
}

// NewLauncher wires a launcher over the shared store and a runner backend.
func NewLauncher(cfg *config.Config, repo store.Repository, chat Chat, run runner.Runner) *Launcher {
	return &Launcher{cfg: cfg, repo: repo, chat: chat, runner: run}
}

// Run verifies the Slack connection and blocks in the polling loop until ctx
// is canceled.
func (l *Launcher) Run(ctx context.Context) error {
	identity, err := l.chat.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack auth failed: %w", err)
	}
	l.botUserID = l.cfg.SlackBotUserID
	if l.botUserID == "" {
		l.botUserID = identity.UserID
	}
	slog.Info("Connected to Slack", "user", identity.User, "user_id", identity.UserID)

	if err := l.ensureCursor(ctx); err != nil {
		return err
	}
	slog.Info("launcher polling",
		"channel", l.cfg.SlackChannel,
		"interval", l.cfg.Launcher.PollInterval,
		"runner", l.cfg.Launcher.Runner)

	ticker := time.NewTicker(l.cfg.Launcher.PollInterval)
	defer ticker.Stop()
	for {
		if err := l.tick(ctx); err != nil {
			slog.Warn("poll error", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("launcher shutting down", "reason", ctx.Err())
			return nil
		case <-ticker.C:
		}
	}
}

// ensureCursor starts a fresh deployment at "now" so old channel history is
// never replayed as new tasks.
func (l *Launcher) ensureCursor(ctx context.Context) error {
	cursor, err := l.repo.GetLauncherCursor(ctx, l.cfg.SlackChannel)
	if err != nil {
		return err
	}
	if cursor != "" {
		return nil
	}
	return l.repo.SetLauncherCursor(ctx, l.cfg.SlackChannel, nowTS())
}

func (l *Launcher) tick(ctx context.Context) error {
	messages, err := l.chat.FetchHistory(ctx, l.cfg.SlackChannel, l.cfg.Launcher.HistoryLimit)
	if err != nil {
		return err
	}
	cursor, err := l.repo.GetLauncherCursor(ctx, l.cfg.SlackChannel)
	if err != nil {
		return err
	}

	// History arrives newest first; walk it oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if cursor != "" && domain.CompareTS(msg.TS, cursor) <= 0 {
			continue
		}
		processed, err := l.repo.IsProcessed(ctx, l.cfg.SlackChannel, msg.TS)
		if err != nil {
			slog.Warn("processed lookup failed", "ts", msg.TS, "error", err)
			continue
		}
		if processed {
			continue
		}
		if !MentionsBot(msg.Text, l.botUserID) {
			continue
		}

		task, ok := ParseCommand(msg.Text)
		if !ok {
			// A bare mention is likely a reply meant for an escalated
			// question, not a command.
			l.markProcessed(ctx, msg.TS)
			continue
		}

		l.startTask(ctx, msg.TS, task)
		l.markProcessed(ctx, msg.TS)
	}

	if len(messages) > 0 {
		// Newest first from the API.
		if err := l.repo.SetLauncherCursor(ctx, l.cfg.SlackChannel, messages[0].TS); err != nil {
			slog.Warn("failed to save launcher cursor", "error", err)
		}
	}
	if err := l.repo.TrimProcessed(ctx, l.cfg.SlackChannel, processedKeep); err != nil {
		slog.Warn("failed to trim processed markers", "error", err)
	}

	l.sweepCompleted(ctx)
	return nil
}

func (l *Launcher) startTask(ctx context.Context, threadTS, taskText string) {
	name := SessionName(taskText)
	slog.Info("new task", "session", name, "task", truncate(taskText, 80))

	// Container output lives in the docker daemon, not a host file; only
	// tmux tasks get a log path.
	logPath := ""
	var ack string
	if l.cfg.Launcher.Runner == "docker" {
		ack = fmt.Sprintf(":rocket: *Launching Claude Code session*\n*Task:* %s\n*Session:* `%s`\n*Terminal:* `docker logs -f %s`",
			taskText, name, name)
	} else {
		logPath = l.cfg.TaskLogPath(name)
		ack = fmt.Sprintf(":rocket: *Launching Claude Code session*\n*Task:* %s\n*Session:* `%s`\n*Terminal:* `tmux attach -t %s`\n*Log:* `%s`",
			taskText, name, name, logPath)
	}
	if err := l.chat.PostThreadReply(ctx, l.cfg.SlackChannel, threadTS, ack); err != nil {
		slog.Warn("Slack ack failed", "session", name, "error", err)
	}

	task := &domain.Task{
		SessionName: name,
		Channel:     l.cfg.SlackChannel,
		ThreadTS:    threadTS,
		Prompt:      taskText,
		Runner:      l.cfg.Launcher.Runner,
		LogPath:     logPath,
		StartedAt:   time.Now().UTC(),
	}

	runtimeID, err := l.runner.Launch(ctx, task)
	if err != nil {
		slog.Error("failed to launch session", "session", name, "error", err)
		if postErr := l.chat.PostThreadReply(ctx, l.cfg.SlackChannel, threadTS,
			":x: Failed to launch session. Check logs."); postErr != nil {
			slog.Warn("failed to post launch failure", "session", name, "error", postErr)
		}
		return
	}
	task.RuntimeID = runtimeID

	if err := l.repo.SaveTask(ctx, task); err != nil {
		slog.Error("failed to record task", "session", name, "error", err)
	}
	slog.Info("launched session", "session", name, "runtime_id", runtimeID)
}

// sweepCompleted posts a summary for every task whose session has ended and
// forgets it.
func (l *Launcher) sweepCompleted(ctx context.Context) {
	tasks, err := l.repo.ListTasks(ctx)
	if err != nil {
		slog.Warn("failed to list tasks", "error", err)
		return
	}
	for _, task := range tasks {
		running, err := l.runner.IsRunning(ctx, task.RuntimeID)
		if err != nil {
			slog.Warn("failed to check session", "session", task.SessionName, "error", err)
			continue
		}
		if running {
			continue
		}
		slog.Info("session has ended", "session", task.SessionName)
		l.postCompletionSummary(ctx, task)
		// Stop after the summary; the docker log tail needs the container
		// to still exist.
		if err := l.runner.Stop(ctx, task.RuntimeID); err != nil {
			slog.Warn("failed to release session", "session", task.SessionName, "error", err)
		}
		if err := l.repo.DeleteTask(ctx, task.SessionName); err != nil {
			slog.Warn("failed to delete task", "session", task.SessionName, "error", err)
		}
	}
}

func (l *Launcher) postCompletionSummary(ctx context.Context, task *domain.Task) {
	// One extra byte tells truncation apart from an exactly-full tail.
	output, err := l.runner.TailLog(ctx, task, summaryTailBytes+1)

	var text string
	if err != nil {
		text = fmt.Sprintf(":white_check_mark: *Session `%s` completed* (no log output found)", task.SessionName)
	} else {
		summary := output
		if len(summary) > summaryTailBytes {
			summary = "..." + summary[len(summary)-summaryTailBytes:]
		}
		text = fmt.Sprintf(":white_check_mark: *Session `%s` completed*\n\n```\n%s\n```", task.SessionName, summary)
	}

	if err := l.chat.PostThreadReply(ctx, task.Channel, task.ThreadTS, text); err != nil {
		slog.Warn("Failed to post completion summary", "session", task.SessionName, "error", err)
	}
}

func (l *Launcher) markProcessed(ctx context.Context, ts string) {
	if err := l.repo.MarkProcessed(ctx, l.cfg.SlackChannel, ts); err != nil {
		slog.Warn("failed to mark message processed", "ts", ts, "error", err)
	}
}

// nowTS renders the current time in Slack's "seconds.microseconds" format.
func nowTS() string {
	now := time.Now()
	return fmt.Sprintf("%d.%06d", now.Unix(), now.Nanosecond()/1000)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

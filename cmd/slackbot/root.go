package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/escalate"
	"github.com/claw4business/claude-code-slackbot/internal/slack"
	"github.com/claw4business/claude-code-slackbot/internal/store"
	"github.com/claw4business/claude-code-slackbot/internal/watcher"
)

var rootCmd = &cobra.Command{
	Use:   "slackbot",
	Short: "Bridge Claude Code sessions to a Slack channel",
	Long: `slackbot connects Claude Code sessions to a Slack channel.

Hook mode (hook pre / hook post) intercepts AskUserQuestion calls so each
question is mirrored to Slack and the terminal races the channel for the
answer. Launcher mode (launcher) watches the channel for /claude commands
and runs each task in a tmux session or Docker container.`,
	SilenceUsage: true,
}

// openRuntime loads configuration and opens the shared store. Callers own
// the returned repository and must close it.
func openRuntime() (*config.Config, store.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, repo, nil
}

// newCoordinator wires the full escalation stack: the Slack gateway plus
// the detached watcher spawner.
func newCoordinator(cfg *config.Config, repo store.Repository) *escalate.Coordinator {
	gateway := slack.NewClient(cfg.SlackToken, cfg.SlackAPIURL)
	return escalate.NewCoordinator(cfg, repo, gateway, watcher.NewSpawner(cfg))
}

func closeQuietly(repo store.Repository) {
	if err := repo.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

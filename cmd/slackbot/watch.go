package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/watcher"
)

var watchSessionID string

// watchCmd is the detached per-session poller. The coordinator re-execs
// this binary with Setsid set and both output streams appended to the
// session's diagnostic log.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the detached reply watcher for a session",
	Run:   runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSessionID, "session-id", "", "session to watch")
	_ = watchCmd.MarkFlagRequired("session-id")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	// Cleanup supersedes a watcher with SIGTERM; exit quietly on it.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, repo, err := openRuntime()
	if err != nil {
		slog.Error("watcher cannot reach the store", "error", err)
		return
	}
	defer closeQuietly(repo)

	outcome := watcher.Run(ctx, newCoordinator(cfg, repo), repo, cfg, watchSessionID)
	slog.Info("watcher finished", "session_id", watchSessionID, "outcome", outcome.String())
}

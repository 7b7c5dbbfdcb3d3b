package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/api"
	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/escalate"
	"github.com/claw4business/claude-code-slackbot/internal/launcher"
	"github.com/claw4business/claude-code-slackbot/internal/middleware"
	"github.com/claw4business/claude-code-slackbot/internal/runner"
	"github.com/claw4business/claude-code-slackbot/internal/slack"
	"github.com/claw4business/claude-code-slackbot/internal/watcher"
)

// Escalation state older than this with a dead watcher is janitor fodder.
const sessionTTL = 24 * time.Hour

var launcherCmd = &cobra.Command{
	Use:   "launcher",
	Short: "Run the Slack task launcher daemon with the status API",
	RunE:  runLauncher,
}

func init() {
	rootCmd.AddCommand(launcherCmd)
}

func runLauncher(cmd *cobra.Command, args []string) error {
	cfg, repo, err := openRuntime()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	slog.Info("Starting launcher daemon",
		"port", cfg.Port,
		"runner", cfg.Launcher.Runner,
		"dev", cfg.IsDevelopment())

	if err := repo.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	run, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	chat := slack.NewClient(cfg.SlackToken, cfg.SlackAPIURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord := escalate.NewCoordinator(cfg, repo, chat, watcher.NewSpawner(cfg))
	escalate.StartJanitor(ctx, coord, sessionTTL)

	launchErr := make(chan error, 1)
	go func() {
		launchErr <- launcher.NewLauncher(cfg, repo, chat, run).Run(ctx)
	}()

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	origins := []string{"*"}
	if cfg.AllowedOrigin != "" {
		origins = []string{cfg.AllowedOrigin}
	}
	r.Use(middleware.CORS(origins))

	api.NewHandler(repo, cfg).Routes(r)
	r.Get("/ws/logs", api.NewLogStreamHandler(repo, cfg, run).ServeHTTP)

	// Note: the log stream holds connections open, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Status API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	// The polling loop only returns early on a startup failure; a signal
	// lands in ctx first.
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-launchErr:
		stop()
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
	return runErr
}

func buildRunner(cfg *config.Config) (runner.Runner, error) {
	if cfg.Launcher.Runner == "docker" {
		return runner.NewDockerRunner(cfg)
	}
	return runner.NewTmuxRunner(cfg), nil
}

// Slackbot - Claude Code Slack bridge
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// stdout carries hook decisions and answer tokens, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

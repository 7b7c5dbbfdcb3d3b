// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	SlackToken     string
	SlackChannel   string
	SlackBotUserID string
	SlackAPIURL    string
	DBPath         string
	LogDir         string
	Port           string
	AppEnv         string
	AllowedOrigin  string
	ClaudeBin      string

	WatchInterval    time.Duration
	WatchTimeout     time.Duration
	WaitPollInterval time.Duration
	WaitTimeout      time.Duration

	Launcher LauncherConfig
}

// LauncherConfig controls the channel task launcher daemon.
type LauncherConfig struct {
	PollInterval time.Duration
	HistoryLimit int
	Runner       string // "tmux" (default) or "docker"
	Image        string
	WorkDir      string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		SlackToken:     getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannel:   getEnv("SLACK_CHANNEL_ID", ""),
		SlackBotUserID: getEnv("SLACK_BOT_USER_ID", ""),
		SlackAPIURL:    getEnv("SLACK_API_URL", "https://slack.com/api"),
		DBPath:         getEnv("DB_PATH", "./data/slackbot.db"),
		LogDir:         getEnv("LOG_DIR", "./data/logs"),
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", ""),
		ClaudeBin:      getEnv("CLAUDE_BIN", "claude"),

		WatchInterval:    getEnvDuration("WATCH_INTERVAL", 5*time.Second),
		WatchTimeout:     getEnvDuration("WATCH_TIMEOUT", 900*time.Second),
		WaitPollInterval: getEnvDuration("WAIT_POLL_INTERVAL", 2*time.Second),
		WaitTimeout:      getEnvDuration("WAIT_TIMEOUT", 900*time.Second),

		Launcher: LauncherConfig{
			PollInterval: getEnvDuration("LAUNCHER_POLL_INTERVAL", 5*time.Second),
			HistoryLimit: getEnvInt("LAUNCHER_HISTORY_LIMIT", 10),
			Runner:       getEnv("LAUNCHER_RUNNER", "tmux"),
			Image:        getEnv("LAUNCHER_IMAGE", "claude-code:latest"),
			WorkDir:      getEnv("LAUNCHER_WORK_DIR", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// Slack credentials are intentionally not required: without them the
// escalator still runs in terminal-only mode.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LogDir == "" {
		return fmt.Errorf("LOG_DIR cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be > 0")
	}
	if c.WatchTimeout <= 0 {
		return fmt.Errorf("WATCH_TIMEOUT must be > 0")
	}
	if c.WaitPollInterval <= 0 {
		return fmt.Errorf("WAIT_POLL_INTERVAL must be > 0")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("WAIT_TIMEOUT must be > 0")
	}
	if c.Launcher.PollInterval <= 0 {
		return fmt.Errorf("LAUNCHER_POLL_INTERVAL must be > 0")
	}
	if c.Launcher.HistoryLimit <= 0 {
		return fmt.Errorf("LAUNCHER_HISTORY_LIMIT must be > 0")
	}
	if c.Launcher.Runner != "tmux" && c.Launcher.Runner != "docker" {
		return fmt.Errorf("LAUNCHER_RUNNER must be \"tmux\" or \"docker\"")
	}
	return nil
}

// SlackConfigured reports whether enough Slack configuration is present to
// publish questions. Missing credentials are a degraded mode, not an error.
func (c *Config) SlackConfigured() bool {
	return c.SlackToken != "" && c.SlackChannel != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv != "production"
}

// SessionLogPath returns the diagnostic log file for an escalated session.
func (c *Config) SessionLogPath(sessionID string) string {
	return filepath.Join(c.LogDir, "claude-q-"+safeName(sessionID)+".log")
}

// TaskLogPath returns the output log file for a launched task session.
func (c *Config) TaskLogPath(sessionName string) string {
	return filepath.Join(c.LogDir, safeName(sessionName)+".log")
}

// safeName keeps identifiers usable as file name components. Session IDs
// arrive from external JSON and must not traverse paths.
func safeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("5s", "15m") and, for
// compatibility with the older shell tooling, bare integers meaning seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

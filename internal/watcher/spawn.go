package watcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/claw4business/claude-code-slackbot/internal/config"
)

// Spawner launches detached watcher processes by re-executing the current
// binary with the watch subcommand.
type Spawner struct {
	cfg *config.Config
}

// NewSpawner returns a Spawner writing watcher output under cfg's log dir.
func NewSpawner(cfg *config.Config) *Spawner {
	return &Spawner{cfg: cfg}
}

// Spawn starts `watch --session-id <id>` in its own session with stdout and
// stderr appended to the per-session log, then releases the process so it
// outlives the hook that started it.
func (s *Spawner) Spawn(_ context.Context, sessionID string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	logPath := s.cfg.SessionLogPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return 0, fmt.Errorf("create log dir: %w", err)
	}
	logHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("open watcher log: %w", err)
	}
	defer logHandle.Close()

	cmd := exec.Command(exe, "watch", "--session-id", sessionID)
	cmd.Stdout = logHandle
	cmd.Stderr = logHandle
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start watcher: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

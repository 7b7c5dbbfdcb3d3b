package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// validSessionNameRe rejects names tmux would mangle and anything that could
// smuggle shell metacharacters into the wrapper script path.
var validSessionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateSessionName(name string) error {
	if name == "" || !validSessionNameRe.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidSessionName, name, validSessionNameRe.String())
	}
	return nil
}

// TmuxRunner runs tasks in detached local tmux sessions.
type TmuxRunner struct {
	cfg *config.Config
}

// NewTmuxRunner returns a Runner backed by the local tmux server.
func NewTmuxRunner(cfg *config.Config) *TmuxRunner {
	return &TmuxRunner{cfg: cfg}
}

// run executes one tmux command and returns stdout. The -u flag keeps UTF-8
// output intact regardless of locale.
func (r *TmuxRunner) run(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-u"}, args...)
	cmd := exec.CommandContext(ctx, "tmux", allArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapTmuxError(err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// wrapTmuxError maps tmux stderr text onto the package's typed errors.
func wrapTmuxError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "duplicate session") {
		return ErrSessionExists
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// Launch writes a wrapper script and starts it in a detached session named
// after the task. The wrapper tees output into the task log and lingers for
// half a minute so a user attaching late can still read the tail.
func (r *TmuxRunner) Launch(ctx context.Context, task *domain.Task) (string, error) {
	if err := validateSessionName(task.SessionName); err != nil {
		return "", err
	}
	script, err := r.writeWrapperScript(task)
	if err != nil {
		return "", err
	}
	if _, err := r.run(ctx, "new-session", "-d", "-s", task.SessionName, script); err != nil {
		return "", err
	}
	return task.SessionName, nil
}

func (r *TmuxRunner) writeWrapperScript(task *domain.Task) (string, error) {
	path := filepath.Join(os.TempDir(), "claude-launch-"+task.SessionName+".sh")
	script := fmt.Sprintf(`#!/bin/bash
# Claude Code session: %s
# Log: %s

export PATH="$HOME/.local/bin:$PATH"

%s --dangerously-skip-permissions -p %s 2>&1 | tee %q

echo ""
echo "========================================"
echo "Claude session complete."
echo "Session: %s"
echo "Log: %s"
echo "========================================"
sleep 30
`, task.SessionName, task.LogPath,
		r.cfg.ClaudeBin, strconv.Quote(task.Prompt), task.LogPath,
		task.SessionName, task.LogPath)

	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("write wrapper script: %w", err)
	}
	return path, nil
}

// IsRunning checks the session with an exact-match target. Without the "="
// prefix tmux matches name prefixes, so claude-fix would shadow claude-fix-2.
func (r *TmuxRunner) IsRunning(ctx context.Context, runtimeID string) (bool, error) {
	_, err := r.run(ctx, "has-session", "-t", "="+runtimeID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Stop kills the session.
func (r *TmuxRunner) Stop(ctx context.Context, runtimeID string) error {
	_, err := r.run(ctx, "kill-session", "-t", "="+runtimeID)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
		return nil
	}
	return err
}

// TailLog reads the end of the task's log file.
func (r *TmuxRunner) TailLog(_ context.Context, task *domain.Task, n int64) (string, error) {
	return tailFile(task.LogPath, n)
}

// FollowLog streams the task's log file as the wrapper writes it.
func (r *TmuxRunner) FollowLog(ctx context.Context, task *domain.Task) (io.ReadCloser, error) {
	return newFollowReader(ctx, task.LogPath), nil
}

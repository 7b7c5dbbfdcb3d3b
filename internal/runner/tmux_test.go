package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

func TestValidateSessionName(t *testing.T) {
	valid := []string{"claude-fix-auth-a1b2", "task_1", "A-Z-0-9"}
	for _, name := range valid {
		if err := validateSessionName(name); err != nil {
			t.Errorf("Expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"", "has space", "has.dot", "has:colon", "has/slash", "has$var"}
	for _, name := range invalid {
		err := validateSessionName(name)
		if !errors.Is(err, ErrInvalidSessionName) {
			t.Errorf("Expected %q to be rejected, got %v", name, err)
		}
	}
}

func TestWrapTmuxError(t *testing.T) {
	base := errors.New("exit status 1")

	cases := []struct {
		stderr string
		want   error
	}{
		{"no server running on /tmp/tmux-1000/default", ErrNoServer},
		{"error connecting to /tmp/tmux-1000/default", ErrNoServer},
		{"duplicate session: claude-fix", ErrSessionExists},
		{"can't find session: claude-fix", ErrSessionNotFound},
		{"session not found: claude-fix", ErrSessionNotFound},
	}
	for _, tc := range cases {
		if got := wrapTmuxError(base, tc.stderr, []string{"has-session"}); !errors.Is(got, tc.want) {
			t.Errorf("stderr %q: expected %v, got %v", tc.stderr, tc.want, got)
		}
	}

	// Unrecognized stderr keeps the text for diagnostics.
	got := wrapTmuxError(base, "protocol version mismatch", []string{"new-session"})
	if got == nil || !strings.Contains(got.Error(), "protocol version mismatch") {
		t.Errorf("Expected wrapped stderr text, got %v", got)
	}
}

func TestWriteWrapperScript(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	r := NewTmuxRunner(&config.Config{ClaudeBin: "claude"})
	task := &domain.Task{
		SessionName: "claude-fix-auth-a1b2",
		Prompt:      `fix the "login" bug`,
		LogPath:     filepath.Join(dir, "task.log"),
	}

	path, err := r.writeWrapperScript(task)
	if err != nil {
		t.Fatalf("writeWrapperScript failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("Expected executable script, got mode %v", info.Mode())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	script := string(raw)

	if !strings.HasPrefix(script, "#!/bin/bash\n") {
		t.Error("Expected bash shebang")
	}
	if !strings.Contains(script, `claude --dangerously-skip-permissions -p "fix the \"login\" bug" 2>&1 | tee`) {
		t.Errorf("Unexpected claude invocation:\n%s", script)
	}
	if !strings.Contains(script, task.LogPath) {
		t.Error("Expected log path in script")
	}
	if !strings.Contains(script, "sleep 30") {
		t.Error("Expected linger before the session closes")
	}
}

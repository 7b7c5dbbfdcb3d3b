package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/config"
	"github.com/claw4business/claude-code-slackbot/internal/domain"
	"github.com/claw4business/claude-code-slackbot/internal/escalate"
	"github.com/claw4business/claude-code-slackbot/internal/slack"
	"github.com/claw4business/claude-code-slackbot/internal/store"
)

type stubGateway struct {
	mu      sync.Mutex
	replies []slack.Message
}

func (g *stubGateway) PostMessage(_ context.Context, _, _ string) (string, error) {
	return "1755920000.100000", nil
}

func (g *stubGateway) PostThreadReply(_ context.Context, _, _, _ string) error {
	return nil
}

func (g *stubGateway) FetchRepliesSince(_ context.Context, _, _, _ string) ([]slack.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.replies, nil
}

func newWatcherFixture(t *testing.T, gw *stubGateway) (*escalate.Coordinator, store.Repository, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		SlackToken:    "xoxb-test",
		SlackChannel:  "C0TEST",
		DBPath:        filepath.Join(dir, "test.db"),
		LogDir:        dir,
		WatchInterval: 10 * time.Millisecond,
		WatchTimeout:  2 * time.Second,
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	coord := escalate.NewCoordinator(cfg, repo, gw, nil)
	return coord, repo, cfg
}

func savePublishedSession(t *testing.T, repo store.Repository, sessionID string) {
	t.Helper()
	now := time.Now().UTC()
	session := &domain.Session{
		ID: sessionID,
		Questions: []domain.Question{
			{Text: "Proceed?", Options: []domain.Option{{Label: "Yes"}, {Label: "No"}}},
		},
		Channel:    "C0TEST",
		ThreadTS:   "1755920000.100000",
		BaselineTS: "1755920000.100000",
		LastSeenTS: "1755920000.100000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
}

func TestRunFindsAnswer(t *testing.T) {
	gw := &stubGateway{replies: []slack.Message{
		{TS: "1755920001.000100", Text: "1", User: "U123"},
	}}
	coord, repo, cfg := newWatcherFixture(t, gw)
	savePublishedSession(t, repo, "sess-1")

	outcome := Run(context.Background(), coord, repo, cfg, "sess-1")

	if outcome != OutcomeFound {
		t.Fatalf("Expected found, got %s", outcome)
	}
	answer, err := repo.GetAnswer(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetAnswer failed: %v", err)
	}
	if answer == nil || answer.Reply != "Yes" {
		t.Errorf("Expected stored answer Yes, got %+v", answer)
	}
}

func TestRunSupersededByStoredAnswer(t *testing.T) {
	gw := &stubGateway{}
	coord, repo, cfg := newWatcherFixture(t, gw)
	savePublishedSession(t, repo, "sess-1")

	if _, err := repo.PutAnswer(context.Background(), "sess-1", "terminal said yes"); err != nil {
		t.Fatalf("PutAnswer failed: %v", err)
	}

	if outcome := Run(context.Background(), coord, repo, cfg, "sess-1"); outcome != OutcomeSuperseded {
		t.Errorf("Expected superseded, got %s", outcome)
	}
}

func TestRunSupersededByReplacedHandle(t *testing.T) {
	gw := &stubGateway{}
	coord, repo, cfg := newWatcherFixture(t, gw)
	savePublishedSession(t, repo, "sess-1")

	go func() {
		time.Sleep(50 * time.Millisecond)
		// A re-asked question registers a fresh watcher under the same id.
		if err := repo.SaveWatcher(context.Background(), "sess-1", 999999); err != nil {
			t.Errorf("SaveWatcher failed: %v", err)
		}
	}()

	if outcome := Run(context.Background(), coord, repo, cfg, "sess-1"); outcome != OutcomeSuperseded {
		t.Errorf("Expected superseded, got %s", outcome)
	}
}

func TestRunTimesOut(t *testing.T) {
	gw := &stubGateway{}
	coord, repo, cfg := newWatcherFixture(t, gw)
	cfg.WatchTimeout = 80 * time.Millisecond
	savePublishedSession(t, repo, "sess-1")

	start := time.Now()
	if outcome := Run(context.Background(), coord, repo, cfg, "sess-1"); outcome != OutcomeTimedOut {
		t.Errorf("Expected timed_out, got %s", outcome)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Timed out too early: %v", elapsed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gw := &stubGateway{}
	coord, repo, cfg := newWatcherFixture(t, gw)
	savePublishedSession(t, repo, "sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	if outcome := Run(ctx, coord, repo, cfg, "sess-1"); outcome != OutcomeStopped {
		t.Errorf("Expected stopped, got %s", outcome)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeFound:      "found",
		OutcomeTimedOut:   "timed_out",
		OutcomeSuperseded: "superseded",
		OutcomeStopped:    "stopped",
		Outcome(42):       "unknown",
	}
	for outcome, want := range cases {
		if got := outcome.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

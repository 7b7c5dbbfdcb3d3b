package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()

	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return repo
}

func testSession(id string) *domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Session{
		ID: id,
		Questions: []domain.Question{
			{
				Text: "Proceed with deploy?",
				Options: []domain.Option{
					{Label: "Yes", Description: "Ship it"},
					{Label: "No"},
				},
			},
		},
		Channel:    "C0123456789",
		ThreadTS:   "1755920000.100000",
		BaselineTS: "1755920000.100000",
		LastSeenTS: "1755920000.100000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetSession(ctx, "missing")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing session, got %+v", got)
	}

	want := testSession("sess-1")
	if err := repo.SaveSession(ctx, want); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err = repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected session, got nil")
	}
	if got.ThreadTS != want.ThreadTS || got.Channel != want.Channel {
		t.Errorf("Expected thread %q in %q, got %q in %q", want.ThreadTS, want.Channel, got.ThreadTS, got.Channel)
	}
	if len(got.Questions) != 1 || len(got.Questions[0].Options) != 2 {
		t.Errorf("Questions did not round-trip: %+v", got.Questions)
	}
	if got.Questions[0].Options[0].Description != "Ship it" {
		t.Errorf("Expected option description to survive, got %+v", got.Questions[0].Options[0])
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", want.CreatedAt, got.CreatedAt)
	}

	if err := repo.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := repo.DeleteSession(ctx, "sess-1"); err != nil {
		t.Errorf("Second DeleteSession should be a no-op, got %v", err)
	}

	got, err = repo.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil after delete, got %+v", got)
	}
}

func TestAdvanceCursorMonotone(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-cursor")
	if err := repo.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	advanced, err := repo.AdvanceCursor(ctx, "sess-cursor", "1755920010.200000")
	if err != nil {
		t.Fatalf("AdvanceCursor failed: %v", err)
	}
	if !advanced {
		t.Error("Expected newer ts to advance the cursor")
	}

	// A stale timestamp must not move the cursor backward.
	advanced, err = repo.AdvanceCursor(ctx, "sess-cursor", "1755920005.000000")
	if err != nil {
		t.Fatalf("AdvanceCursor failed: %v", err)
	}
	if advanced {
		t.Error("Expected stale ts to be rejected")
	}

	got, err := repo.GetSession(ctx, "sess-cursor")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.LastSeenTS != "1755920010.200000" {
		t.Errorf("Expected cursor 1755920010.200000, got %q", got.LastSeenTS)
	}

	advanced, err = repo.AdvanceCursor(ctx, "no-such-session", "1755920011.000000")
	if err != nil {
		t.Fatalf("AdvanceCursor failed: %v", err)
	}
	if advanced {
		t.Error("Expected no advance for unknown session")
	}
}

func TestPutAnswerFirstWriterWins(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	won, err := repo.PutAnswer(ctx, "sess-a", "Yes")
	if err != nil {
		t.Fatalf("PutAnswer failed: %v", err)
	}
	if !won {
		t.Error("Expected first write to win")
	}

	won, err = repo.PutAnswer(ctx, "sess-a", "No")
	if err != nil {
		t.Fatalf("PutAnswer failed: %v", err)
	}
	if won {
		t.Error("Expected second write to lose")
	}

	answer, err := repo.GetAnswer(ctx, "sess-a")
	if err != nil {
		t.Fatalf("GetAnswer failed: %v", err)
	}
	if answer == nil || answer.Reply != "Yes" {
		t.Errorf("Expected stored answer Yes, got %+v", answer)
	}

	if err := repo.DeleteAnswer(ctx, "sess-a"); err != nil {
		t.Fatalf("DeleteAnswer failed: %v", err)
	}
	if err := repo.DeleteAnswer(ctx, "sess-a"); err != nil {
		t.Errorf("DeleteAnswer on empty should be a no-op, got %v", err)
	}

	won, err = repo.PutAnswer(ctx, "sess-a", "No")
	if err != nil {
		t.Fatalf("PutAnswer failed: %v", err)
	}
	if !won {
		t.Error("Expected write after delete to win again")
	}
}

func TestWatcherHandleReplaced(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	handle, err := repo.GetWatcher(ctx, "sess-w")
	if err != nil {
		t.Fatalf("GetWatcher failed: %v", err)
	}
	if handle != nil {
		t.Errorf("Expected nil watcher, got %+v", handle)
	}

	if err := repo.SaveWatcher(ctx, "sess-w", 1234); err != nil {
		t.Fatalf("SaveWatcher failed: %v", err)
	}
	if err := repo.SaveWatcher(ctx, "sess-w", 5678); err != nil {
		t.Fatalf("SaveWatcher failed: %v", err)
	}

	handle, err = repo.GetWatcher(ctx, "sess-w")
	if err != nil {
		t.Fatalf("GetWatcher failed: %v", err)
	}
	if handle == nil || handle.PID != 5678 {
		t.Errorf("Expected replacement pid 5678, got %+v", handle)
	}

	if err := repo.DeleteWatcher(ctx, "sess-w"); err != nil {
		t.Fatalf("DeleteWatcher failed: %v", err)
	}
	handle, err = repo.GetWatcher(ctx, "sess-w")
	if err != nil {
		t.Fatalf("GetWatcher failed: %v", err)
	}
	if handle != nil {
		t.Errorf("Expected nil after delete, got %+v", handle)
	}
}

func TestListSessionsBefore(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	old := testSession("sess-old")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := testSession("sess-recent")

	if err := repo.SaveSession(ctx, old); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := repo.SaveSession(ctx, recent); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	stale, err := repo.ListSessionsBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListSessionsBefore failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "sess-old" {
		t.Errorf("Expected only sess-old, got %+v", stale)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first := &domain.Task{
		SessionName: "claude-fix-the-bug-a1b2",
		Channel:     "C0123456789",
		ThreadTS:    "1755920001.000100",
		Prompt:      "fix the bug in parser.go",
		Runner:      "tmux",
		RuntimeID:   "claude-fix-the-bug-a1b2",
		LogPath:     "/tmp/claude-fix-the-bug-a1b2.log",
		StartedAt:   time.Now().Add(-time.Minute).UTC().Truncate(time.Second),
	}
	second := &domain.Task{
		SessionName: "claude-add-tests-c3d4",
		Channel:     "C0123456789",
		Prompt:      "add tests",
		Runner:      "docker",
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}

	if err := repo.SaveTask(ctx, first); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	if err := repo.SaveTask(ctx, second); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	got, err := repo.GetTask(ctx, first.SessionName)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil || got.Prompt != first.Prompt || got.Runner != "tmux" {
		t.Errorf("Task did not round-trip: %+v", got)
	}

	tasks, err := repo.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].SessionName != first.SessionName {
		t.Errorf("Expected oldest-first listing, got %+v", tasks)
	}

	if err := repo.DeleteTask(ctx, first.SessionName); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	tasks, err = repo.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("Expected 1 task after delete, got %d", len(tasks))
	}
}

func TestProcessedMessagesTrim(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	channel := "C0123456789"
	stamps := []string{
		"1755920001.000000",
		"1755920002.000000",
		"1755920003.000000",
		"1755920004.000000",
		"1755920005.000000",
	}
	for _, ts := range stamps {
		if err := repo.MarkProcessed(ctx, channel, ts); err != nil {
			t.Fatalf("MarkProcessed failed: %v", err)
		}
	}

	// Marking twice must not error.
	if err := repo.MarkProcessed(ctx, channel, stamps[0]); err != nil {
		t.Fatalf("Duplicate MarkProcessed failed: %v", err)
	}

	if err := repo.TrimProcessed(ctx, channel, 3); err != nil {
		t.Fatalf("TrimProcessed failed: %v", err)
	}

	for i, ts := range stamps {
		seen, err := repo.IsProcessed(ctx, channel, ts)
		if err != nil {
			t.Fatalf("IsProcessed failed: %v", err)
		}
		wantSeen := i >= 2
		if seen != wantSeen {
			t.Errorf("ts %s: expected processed=%v after trim, got %v", ts, wantSeen, seen)
		}
	}
}

func TestLauncherCursor(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	ts, err := repo.GetLauncherCursor(ctx, "C0123456789")
	if err != nil {
		t.Fatalf("GetLauncherCursor failed: %v", err)
	}
	if ts != "" {
		t.Errorf("Expected empty cursor, got %q", ts)
	}

	if err := repo.SetLauncherCursor(ctx, "C0123456789", "1755920001.000000"); err != nil {
		t.Fatalf("SetLauncherCursor failed: %v", err)
	}
	if err := repo.SetLauncherCursor(ctx, "C0123456789", "1755920009.000000"); err != nil {
		t.Fatalf("SetLauncherCursor failed: %v", err)
	}

	ts, err = repo.GetLauncherCursor(ctx, "C0123456789")
	if err != nil {
		t.Fatalf("GetLauncherCursor failed: %v", err)
	}
	if ts != "1755920009.000000" {
		t.Errorf("Expected latest cursor, got %q", ts)
	}
}

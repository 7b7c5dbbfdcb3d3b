package escalate

import (
	"strings"
	"testing"
	"time"
)

func TestRenderFullInstructions(t *testing.T) {
	ins := Instructions{
		SessionID:   "sess-1",
		Display:     "Deploy to production?\n  1. Yes\n  2. No",
		Wait:        newWaitStep("/usr/local/bin/slackbot", "sess-1", 900*time.Second),
		AnswerCheck: newCheckStep("/usr/local/bin/slackbot", "sess-1"),
	}

	got := ins.Render()

	if !strings.HasPrefix(got, "IMPORTANT: Do not call AskUserQuestion again. Follow these steps exactly:") {
		t.Errorf("Unexpected preamble:\n%s", got)
	}
	for _, want := range []string{
		"STEP 1: Display this question to the user as plain text:",
		"---\nDeploy to production?\n  1. Yes\n  2. No\n---",
		"(The user can reply in the terminal OR on Slack.)",
		"STEP 2: Start this command with the Bash tool as a BACKGROUND task (DO NOT block):",
		"Command: /usr/local/bin/slackbot wait --session-id sess-1 --timeout 900",
		"run_in_background=true",
		"STEP 4: If the background task finishes first:",
		"- If output is `SLACK_ANSWER: <answer>`, use that answer and continue.",
		"- If output is `NO_ANSWER`, continue waiting for terminal input.",
		"STEP 5: If terminal input arrives first:",
		"STEP 6: Before processing ANY subsequent user message, check for late Slack answer first:",
		"`/usr/local/bin/slackbot answer --session-id sess-1`",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Rendered instructions missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Slack is unavailable") {
		t.Errorf("Full instructions should not mention degraded mode:\n%s", got)
	}
}

func TestRenderDegradedInstructions(t *testing.T) {
	ins := Instructions{
		SessionID: "sess-1",
		Display:   "Deploy to production?",
		Degraded:  true,
	}

	got := ins.Render()

	for _, want := range []string{
		"STEP 1: Display this question to the user as plain text:",
		"STEP 2: Wait for the user's next terminal message as their answer.",
		"(Slack is unavailable for this question.)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Degraded instructions missing %q:\n%s", want, got)
		}
	}
	for _, reject := range []string{"STEP 3", "BACKGROUND", "SLACK_ANSWER"} {
		if strings.Contains(got, reject) {
			t.Errorf("Degraded instructions should not contain %q:\n%s", reject, got)
		}
	}
}

func TestRenderSkip(t *testing.T) {
	ins := Instructions{SessionID: "sess-1", Skip: true}
	if got := ins.Render(); got != "" {
		t.Errorf("Expected empty render for skip, got %q", got)
	}
}

package escalate

import (
	"strings"
	"testing"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

func TestFormatSlackMessageSingleQuestion(t *testing.T) {
	questions := []domain.Question{
		{
			Text: "Deploy to production?",
			Options: []domain.Option{
				{Label: "Yes", Description: "Ship it now"},
				{Label: "No"},
			},
		},
	}

	got := FormatSlackMessage(questions)
	want := strings.Join([]string{
		":robot_face: *Claude Code needs your input:*\n",
		"*Deploy to production?*",
		"",
		"  *1.* `Yes` — Ship it now",
		"  *2.* `No`",
		"",
		"_Reply with the option number (e.g._ `1`_) or type your own answer._",
	}, "\n")

	if got != want {
		t.Errorf("FormatSlackMessage mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatSlackMessageMultipleQuestions(t *testing.T) {
	questions := []domain.Question{
		{Text: "Deploy?", Options: []domain.Option{{Label: "Yes"}}},
		{Text: "Which region?"},
	}

	got := FormatSlackMessage(questions)
	if !strings.Contains(got, "*Q1:* Deploy?") {
		t.Errorf("Expected numbered first question, got:\n%s", got)
	}
	if !strings.Contains(got, "*Q2:* Which region?") {
		t.Errorf("Expected numbered second question, got:\n%s", got)
	}
}

func TestFormatTerminalQuestions(t *testing.T) {
	single := []domain.Question{
		{
			Text: "Deploy to production?",
			Options: []domain.Option{
				{Label: "Yes", Description: "Ship it now"},
				{Label: "No"},
			},
		},
	}

	got := FormatTerminalQuestions(single)
	want := strings.Join([]string{
		"Deploy to production?",
		"  1. Yes — Ship it now",
		"  2. No",
	}, "\n")
	if got != want {
		t.Errorf("FormatTerminalQuestions mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}

	multi := []domain.Question{
		{Text: "Deploy?"},
		{Text: "Which region?"},
	}
	got = FormatTerminalQuestions(multi)
	if !strings.HasPrefix(got, "Question 1: Deploy?") {
		t.Errorf("Expected question numbering for multiple questions, got:\n%s", got)
	}
	if !strings.Contains(got, "Question 2: Which region?") {
		t.Errorf("Expected second question numbering, got:\n%s", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Errorf("Expected trimmed output, got trailing newline:\n%q", got)
	}
}

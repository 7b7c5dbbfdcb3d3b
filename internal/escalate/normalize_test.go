package escalate

import (
	"testing"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

func TestNormalizeReply(t *testing.T) {
	yesNo := []domain.Option{
		{Label: "Yes", Description: "Proceed"},
		{Label: "No"},
	}

	tests := []struct {
		name    string
		raw     string
		options []domain.Option
		want    string
	}{
		{"number picks option", "2", yesNo, "No"},
		{"number one", "1", yesNo, "Yes"},
		{"case-insensitive label", "no", yesNo, "No"},
		{"label with whitespace", " yes ", yesNo, "Yes"},
		{"upper case label", "YES", yesNo, "Yes"},
		{"free text verbatim", "maybe later", yesNo, "maybe later"},
		{"free text trimmed", "  maybe later \n", yesNo, "maybe later"},
		{"number out of range stays verbatim", "3", yesNo, "3"},
		{"zero stays verbatim", "0", yesNo, "0"},
		{"negative stays verbatim", "-1", yesNo, "-1"},
		{"empty reply", "", yesNo, ""},
		{"whitespace only", "   ", yesNo, ""},
		{"no options verbatim number", "2", nil, "2"},
		{"padded option label", "ship", []domain.Option{{Label: " Ship "}}, "Ship"},
		{"huge number verbatim", "99999999999999999999", yesNo, "99999999999999999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeReply(tt.raw, tt.options); got != tt.want {
				t.Errorf("NormalizeReply(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

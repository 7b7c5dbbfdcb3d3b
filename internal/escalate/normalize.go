// Package escalate coordinates routing agent questions to Slack and
// collecting the user's answer back, racing it against terminal input.
package escalate

import (
	"strconv"
	"strings"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// NormalizeReply maps a raw chat reply onto the offered options. A bare
// number picks that option by position, a case-insensitive label match
// returns the canonical label, anything else passes through trimmed.
// Options beyond the first question never participate, so "2" always means
// option two of the first question.
func NormalizeReply(raw string, options []domain.Option) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if idx, err := strconv.Atoi(text); err == nil && idx >= 1 && idx <= len(options) {
		if label := strings.TrimSpace(options[idx-1].Label); label != "" {
			return label
		}
		return text
	}

	for _, opt := range options {
		label := strings.TrimSpace(opt.Label)
		if label != "" && strings.EqualFold(label, text) {
			return label
		}
	}

	return text
}

package escalate

import (
	"fmt"
	"strings"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// FormatSlackMessage renders a question set as the channel message users
// reply to.
func FormatSlackMessage(questions []domain.Question) string {
	lines := []string{":robot_face: *Claude Code needs your input:*\n"}
	for i, q := range questions {
		text := strings.TrimSpace(q.Text)
		if len(questions) > 1 {
			lines = append(lines, fmt.Sprintf("*Q%d:* %s", i+1, text))
		} else {
			lines = append(lines, "*"+text+"*")
		}
		lines = append(lines, "")
		for j, opt := range q.Options {
			label := strings.TrimSpace(opt.Label)
			desc := strings.TrimSpace(opt.Description)
			if desc != "" {
				lines = append(lines, fmt.Sprintf("  *%d.* `%s` — %s", j+1, label, desc))
			} else {
				lines = append(lines, fmt.Sprintf("  *%d.* `%s`", j+1, label))
			}
		}
		lines = append(lines, "")
	}
	lines = append(lines, "_Reply with the option number (e.g._ `1`_) or type your own answer._")
	return strings.Join(lines, "\n")
}

// FormatTerminalQuestions renders a question set as the plain text block
// the agent shows in the terminal.
func FormatTerminalQuestions(questions []domain.Question) string {
	var lines []string
	for i, q := range questions {
		header := ""
		if len(questions) > 1 {
			header = fmt.Sprintf("Question %d: ", i+1)
		}
		lines = append(lines, header+strings.TrimSpace(q.Text))
		for j, opt := range q.Options {
			label := strings.TrimSpace(opt.Label)
			desc := strings.TrimSpace(opt.Description)
			if desc != "" {
				lines = append(lines, fmt.Sprintf("  %d. %s — %s", j+1, label, desc))
			} else {
				lines = append(lines, fmt.Sprintf("  %d. %s", j+1, label))
			}
		}
		lines = append(lines, "")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

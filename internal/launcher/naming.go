package launcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// slugRe drops everything but letters, digits and spaces before slugging.
	slugRe = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
	// mentionRe matches Slack user mentions like <@U0AHC57UW6M>.
	mentionRe = regexp.MustCompile(`<@[A-Z0-9]+>`)
)

// SessionName derives a short unique tmux-safe session name from the task
// text, e.g. "claude-fix-the-login-a1b2".
func SessionName(taskText string) string {
	words := strings.Fields(slugRe.ReplaceAllString(taskText, ""))
	if len(words) > 3 {
		words = words[:3]
	}
	slug := "task"
	if len(words) > 0 {
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
		slug = strings.Join(words, "-")
	}
	return fmt.Sprintf("claude-%s-%s", slug, uuid.NewString()[:4])
}

// MentionsBot reports whether the message text mentions the bot user.
func MentionsBot(text, botUserID string) bool {
	return botUserID != "" && strings.Contains(text, "<@"+botUserID+">")
}

// ParseCommand extracts the task from a "/claude <task>" command after
// stripping user mentions. ok is false for bare mentions and other chatter.
func ParseCommand(text string) (string, bool) {
	stripped := strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	if !strings.HasPrefix(stripped, "/claude") {
		return "", false
	}
	task := strings.TrimSpace(strings.TrimPrefix(stripped, "/claude"))
	if task == "" {
		return "", false
	}
	return task, true
}

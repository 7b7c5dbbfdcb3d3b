package escalate

import (
	"encoding/json"
	"io"
	"os"

	"github.com/claw4business/claude-code-slackbot/internal/domain"
)

// HookInput is the PreToolUse payload the agent pipes to stdin.
type HookInput struct {
	SessionID string    `json:"session_id"`
	ToolInput ToolInput `json:"tool_input"`
}

// ToolInput carries the AskUserQuestion arguments.
type ToolInput struct {
	Questions []domain.Question `json:"questions"`
}

// ParseHookInput decodes a hook payload. ok is false when the payload is
// unusable, in which case the caller must allow the tool call unchanged.
func ParseHookInput(r io.Reader) (string, []domain.Question, bool) {
	var input HookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return "", nil, false
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = os.Getenv("CLAUDE_SESSION_ID")
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	return sessionID, input.ToolInput.Questions, true
}

// Decision is the hook response envelope written to stdout.
type Decision struct {
	HookSpecificOutput HookOutput `json:"hookSpecificOutput"`
}

// HookOutput carries the PreToolUse permission decision.
type HookOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
}

// AllowDecision lets the tool call proceed unchanged.
func AllowDecision() Decision {
	return Decision{HookSpecificOutput: HookOutput{
		HookEventName:      "PreToolUse",
		PermissionDecision: "allow",
	}}
}

// DenyDecision blocks the tool call and hands the agent instructions for
// collecting the answer instead.
func DenyDecision(reason string) Decision {
	return Decision{HookSpecificOutput: HookOutput{
		HookEventName:            "PreToolUse",
		PermissionDecision:       "deny",
		PermissionDecisionReason: reason,
	}}
}

// WriteDecision emits the decision as single-line JSON.
func WriteDecision(w io.Writer, d Decision) error {
	return json.NewEncoder(w).Encode(d)
}

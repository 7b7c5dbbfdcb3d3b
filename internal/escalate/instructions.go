package escalate

import (
	"strconv"
	"strings"
	"time"

	"github.com/claw4business/claude-code-slackbot/internal/gate"
)

// WaitStep describes the background command that races a Slack reply
// against terminal input.
type WaitStep struct {
	Command       []string
	Timeout       time.Duration
	AnswerPrefix  string
	NoAnswerToken string
}

// CheckStep describes the command that surfaces a late Slack answer
// before later user messages are processed.
type CheckStep struct {
	Command []string
}

// Instructions tells the calling agent how to collect the user's answer.
// The payload stays structured until Render, so callers can inspect the
// individual steps instead of scraping prose.
type Instructions struct {
	SessionID   string
	Display     string
	Wait        *WaitStep
	AnswerCheck *CheckStep
	Degraded    bool
	Skip        bool
}

// Render flattens the instructions into the prose handed back through the
// hook protocol.
func (ins *Instructions) Render() string {
	if ins.Skip {
		return ""
	}

	if ins.Degraded || ins.Wait == nil || ins.AnswerCheck == nil {
		parts := []string{
			"IMPORTANT: Do not call AskUserQuestion again. Follow these steps exactly:",
			"",
			"STEP 1: Display this question to the user as plain text:",
			"---",
			ins.Display,
			"---",
			"",
			"STEP 2: Wait for the user's next terminal message as their answer.",
			"(Slack is unavailable for this question.)",
		}
		return strings.Join(parts, "\n")
	}

	waitCmd := strings.Join(ins.Wait.Command, " ")
	checkCmd := strings.Join(ins.AnswerCheck.Command, " ")
	parts := []string{
		"IMPORTANT: Do not call AskUserQuestion again. Follow these steps exactly:",
		"",
		"STEP 1: Display this question to the user as plain text:",
		"---",
		ins.Display,
		"---",
		"(The user can reply in the terminal OR on Slack.)",
		"",
		"STEP 2: Start this command with the Bash tool as a BACKGROUND task (DO NOT block):",
		"Command: " + waitCmd,
		"Bash tool arguments must include: run_in_background=true",
		"Store the returned background task id so you can read or stop it later.",
		"",
		"STEP 3: While that background task runs, wait for the user's next terminal message.",
		"This is a race between terminal input and Slack reply.",
		"",
		"STEP 4: If the background task finishes first:",
		"- Read its output.",
		"- If output is `" + ins.Wait.AnswerPrefix + "<answer>`, use that answer and continue.",
		"- If output is `" + ins.Wait.NoAnswerToken + "`, continue waiting for terminal input.",
		"",
		"STEP 5: If terminal input arrives first:",
		"- Use the terminal message as the user's answer.",
		"- Stop/kill the background wait task (if still running).",
		"- Continue.",
		"",
		"STEP 6: Before processing ANY subsequent user message, check for late Slack answer first:",
		"`" + checkCmd + "`",
		"If the command prints text, that Slack answer overrides and should be used.",
	}
	return strings.Join(parts, "\n")
}

func newWaitStep(executable, sessionID string, timeout time.Duration) *WaitStep {
	return &WaitStep{
		Command: []string{
			executable, "wait",
			"--session-id", sessionID,
			"--timeout", strconv.Itoa(int(timeout / time.Second)),
		},
		Timeout:       timeout,
		AnswerPrefix:  gate.AnswerPrefix,
		NoAnswerToken: gate.NoAnswerToken,
	}
}

func newCheckStep(executable, sessionID string) *CheckStep {
	return &CheckStep{
		Command: []string{executable, "answer", "--session-id", sessionID},
	}
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/escalate"
)

// hookCmd groups the agent hook entry points. Both subcommands read the
// hook payload from stdin and always exit 0: a broken bridge never blocks
// the session it serves.
var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Agent hook entry points (payload on stdin)",
}

var hookPreCmd = &cobra.Command{
	Use:   "pre",
	Short: "PreToolUse hook: escalate an AskUserQuestion call to Slack",
	Run:   runHookPre,
}

var hookPostCmd = &cobra.Command{
	Use:   "post",
	Short: "PostToolUse hook: clear escalation state for the session",
	Run:   runHookPost,
}

func init() {
	hookCmd.AddCommand(hookPreCmd)
	hookCmd.AddCommand(hookPostCmd)
	rootCmd.AddCommand(hookCmd)
}

func runHookPre(cmd *cobra.Command, args []string) {
	// Escalation failures fail open: the tool call proceeds unchanged.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hook pre panicked", "panic", r)
			emitDecision(escalate.AllowDecision())
		}
	}()

	sessionID, questions, ok := escalate.ParseHookInput(os.Stdin)
	if !ok {
		emitDecision(escalate.AllowDecision())
		return
	}

	cfg, repo, err := openRuntime()
	if err != nil {
		slog.Error("hook pre cannot reach the store", "error", err)
		emitDecision(escalate.AllowDecision())
		return
	}
	defer closeQuietly(repo)

	ins := newCoordinator(cfg, repo).Escalate(cmd.Context(), sessionID, questions)
	if ins.Skip {
		emitDecision(escalate.AllowDecision())
		return
	}
	emitDecision(escalate.DenyDecision(ins.Render()))
}

func runHookPost(cmd *cobra.Command, args []string) {
	sessionID, _, ok := escalate.ParseHookInput(os.Stdin)
	if !ok {
		return
	}

	cfg, repo, err := openRuntime()
	if err != nil {
		slog.Error("hook post cannot reach the store", "error", err)
		return
	}
	defer closeQuietly(repo)

	newCoordinator(cfg, repo).Cleanup(cmd.Context(), sessionID)
}

func emitDecision(d escalate.Decision) {
	if err := escalate.WriteDecision(os.Stdout, d); err != nil {
		slog.Error("failed to write hook decision", "error", err)
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/gate"
)

var checkSessionID string

// checkCmd runs one evaluation pass against Slack: stored answer first,
// then a single replies fetch. Prints the answer line if one was found.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll Slack once for an answer to the session's question",
	Run:   runCheck,
}

var answerSessionID string

// answerCmd reads only the stored answer. The escalation instructions run
// it before later user messages so a late Slack reply still wins.
var answerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Print the stored Slack answer for a session, if any",
	Run:   runAnswer,
}

func init() {
	checkCmd.Flags().StringVar(&checkSessionID, "session-id", "", "session to check")
	_ = checkCmd.MarkFlagRequired("session-id")
	answerCmd.Flags().StringVar(&answerSessionID, "session-id", "", "session to read")
	_ = answerCmd.MarkFlagRequired("session-id")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(answerCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, repo, err := openRuntime()
	if err != nil {
		slog.Error("check cannot reach the store", "error", err)
		return
	}
	defer closeQuietly(repo)

	answer, found := newCoordinator(cfg, repo).EvaluateOnce(cmd.Context(), checkSessionID)
	if found {
		fmt.Println(gate.AnswerPrefix + answer)
	}
}

func runAnswer(cmd *cobra.Command, args []string) {
	_, repo, err := openRuntime()
	if err != nil {
		slog.Error("answer cannot reach the store", "error", err)
		os.Exit(1)
	}

	stored, err := repo.GetAnswer(cmd.Context(), answerSessionID)
	closeQuietly(repo)
	if err != nil {
		slog.Error("answer lookup failed", "session_id", answerSessionID, "error", err)
		os.Exit(1)
	}
	if stored == nil || stored.Reply == "" {
		os.Exit(1)
	}
	fmt.Println(stored.Reply)
}

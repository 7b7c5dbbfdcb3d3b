package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/claw4business/claude-code-slackbot/internal/gate"
)

var (
	waitSessionID   string
	waitTimeoutSecs int
)

// waitCmd is the background race arm: it blocks until a Slack answer is
// stored for the session, then prints it behind the answer prefix. It
// always exits 0; the agent reads the output, not the exit code.
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until a Slack answer is stored or the timeout passes",
	Run:   runWait,
}

func init() {
	waitCmd.Flags().StringVar(&waitSessionID, "session-id", "", "session to wait on")
	waitCmd.Flags().IntVar(&waitTimeoutSecs, "timeout", 0, "seconds to wait before giving up (default WAIT_TIMEOUT)")
	_ = waitCmd.MarkFlagRequired("session-id")
	rootCmd.AddCommand(waitCmd)
}

func runWait(cmd *cobra.Command, args []string) {
	cfg, repo, err := openRuntime()
	if err != nil {
		slog.Error("wait cannot reach the store", "error", err)
		fmt.Println(gate.NoAnswerToken)
		return
	}
	defer closeQuietly(repo)

	timeout := cfg.WaitTimeout
	if waitTimeoutSecs > 0 {
		timeout = time.Duration(waitTimeoutSecs) * time.Second
	}

	// The agent kills this process when terminal input wins the race.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answer, found := gate.Wait(ctx, repo, waitSessionID, timeout, cfg.WaitPollInterval)
	if found {
		fmt.Println(gate.AnswerPrefix + answer)
		return
	}
	fmt.Println(gate.NoAnswerToken)
}

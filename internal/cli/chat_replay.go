package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/devops-assistant/internal/apiclient"
	"github.com/dwizi/devops-assistant/internal/memorylog"
	"github.com/dwizi/devops-assistant/internal/routing"
)

type replayRequest struct {
	ClientKey    string
	Delay        time.Duration
	ShowExpected bool
	TimeoutSec   int
}

type replayResult struct {
	TotalTurns int
	SentTurns  int
	Failures   int
}

func newChatReplayCommand(logger *slog.Logger) *cobra.Command {
	var (
		logPath   string
		clientKey string
		maxTurns  int
		delayMS   int
		dryRun    bool
		request   replayRequest
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Resend the inbound turns of a recorded transcript and compare replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(logPath) == "" {
				return fmt.Errorf("--log is required")
			}
			transcript, err := memorylog.ReadFile(logPath)
			if err != nil {
				return err
			}
			turns := transcript.Turns()
			if len(turns) == 0 {
				return fmt.Errorf("no inbound turns found in %s", logPath)
			}
			if maxTurns > 0 && len(turns) > maxTurns {
				turns = turns[:maxTurns]
			}
			request.ClientKey = firstNonEmpty(clientKey, replayClientKey(transcript.ClientKey), defaultClientKey)
			request.Delay = time.Duration(max(delayMS, 0)) * time.Millisecond

			cmd.Printf("Replaying %d turn(s) as %s\n", len(turns), request.ClientKey)
			if dryRun {
				previewTurns(cmd, turns, request.ShowExpected)
				return nil
			}

			logger.Debug("replaying transcript", "path", logPath, "turns", len(turns), "client_key", request.ClientKey)
			result := replayTurns(cmd, apiclient.New(loadConfig(cmd)), turns, request)
			cmd.Printf("Replay complete: sent=%d failures=%d total=%d\n", result.SentTurns, result.Failures, result.TotalTurns)
			if result.Failures > 0 {
				return fmt.Errorf("replay finished with %d failed turn(s)", result.Failures)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&logPath, "log", "", "path to a chat transcript")
	flags.StringVar(&clientKey, "client-key", "", "client key for replayed messages (defaults to <transcript client>-replay)")
	flags.IntVar(&maxTurns, "max-turns", 0, "max inbound turns to replay (0 means all)")
	flags.IntVar(&delayMS, "delay-ms", 0, "delay between replayed turns")
	flags.BoolVar(&dryRun, "dry-run", false, "print planned turns and local routing without sending")
	flags.BoolVar(&request.ShowExpected, "show-expected", true, "print the recorded reply next to the new one")
	flags.IntVar(&request.TimeoutSec, "timeout-sec", defaultTimeoutSec, "request timeout in seconds")
	return cmd
}

// replayClientKey keeps replayed traffic out of the original client's
// transcript and rate limit window.
func replayClientKey(recorded string) string {
	if recorded = strings.TrimSpace(recorded); recorded == "" {
		return ""
	}
	return recorded + "-replay"
}

func previewTurns(cmd *cobra.Command, turns []memorylog.Turn, showExpected bool) {
	for index, turn := range turns {
		decision := routing.Classify(turn.Inbound.Text)
		cmd.Printf("[%d] user: %s\n", index+1, compactLine(turn.Inbound.Text, 200))
		cmd.Printf("    route: %s (%s)\n", decision.Route, decision.Reason)
		if showExpected {
			cmd.Printf("    expected: %s\n", compactLine(firstNonEmpty(turn.FirstReply(), "(none)"), 200))
		}
	}
}

// replayTurns sends every non-empty inbound turn in order. A failed turn is
// counted and reported, and the replay moves on.
func replayTurns(cmd *cobra.Command, client *apiclient.Client, turns []memorylog.Turn, req replayRequest) replayResult {
	result := replayResult{TotalTurns: len(turns)}
	for index, turn := range turns {
		text := strings.TrimSpace(turn.Inbound.Text)
		if text == "" {
			continue
		}
		if result.SentTurns > 0 && req.Delay > 0 {
			time.Sleep(req.Delay)
		}
		result.SentTurns++
		cmd.Printf("[%d] user: %s\n", index+1, compactLine(text, 220))

		ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(req.TimeoutSec))
		response, err := client.Chat(ctx, apiclient.ChatRequest{Message: text, ClientKey: req.ClientKey})
		cancel()
		if err != nil {
			result.Failures++
			cmd.Printf("    error: %v\n", err)
			continue
		}
		cmd.Printf("    assistant [%s/%s]: %s\n", response.Route, response.Type, compactLine(firstNonEmpty(response.Reply, "(no reply)"), 220))
		if req.ShowExpected {
			cmd.Printf("    prev:  %s\n", compactLine(firstNonEmpty(turn.FirstReply(), "(none)"), 220))
		}
	}
	return result
}

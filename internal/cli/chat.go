package cli

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/devops-assistant/internal/apiclient"
	"github.com/dwizi/devops-assistant/internal/chat"
)

const defaultClientKey = "devops-cli"

var exitCommands = map[string]bool{"/exit": true, "/quit": true}

func newChatCommand(logger *slog.Logger) *cobra.Command {
	var (
		clientKey  string
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the DevOps assistant over the API",
		Long:  "Send one message, or start an interactive session when no message is given. Subcommands replay and evaluate recorded transcripts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(loadConfig(cmd))
			key := firstNonEmpty(clientKey, defaultClientKey)
			session := chatSession{cmd: cmd, client: client, clientKey: key, timeoutSec: timeoutSec}

			if text := firstNonEmpty(message, strings.Join(args, " ")); text != "" {
				return session.send(text)
			}
			cmd.Printf("Connected to %s as %s. Type /exit to quit.\n", client.BaseURL(), key)
			return session.loop()
		},
	}
	cmd.Flags().StringVar(&clientKey, "client-key", defaultClientKey, "client key used for rate limiting and transcripts")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", defaultTimeoutSec, "request timeout in seconds")

	cmd.AddCommand(newChatReplayCommand(logger), newChatEvalCommand(logger))
	return cmd
}

type chatSession struct {
	cmd        *cobra.Command
	client     *apiclient.Client
	clientKey  string
	timeoutSec int
}

// send posts one message. A rate-limited or rejected reply is printed, not
// returned.
func (s chatSession) send(text string) error {
	ctx, cancel := context.WithTimeout(commandContext(s.cmd), boundedTimeout(s.timeoutSec))
	defer cancel()
	response, err := s.client.Chat(ctx, apiclient.ChatRequest{Message: text, ClientKey: s.clientKey})
	if err != nil && !errors.Is(err, apiclient.ErrRateLimited) && !errors.Is(err, apiclient.ErrRejected) {
		return err
	}
	printAssistantReply(s.cmd, response)
	return nil
}

// loop reads stdin line by line until EOF or an exit command. Request errors
// are printed and the session continues.
func (s chatSession) loop() error {
	scanner := bufio.NewScanner(s.cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.cmd.Print("you> "); scanner.Scan(); s.cmd.Print("you> ") {
		text := strings.TrimSpace(scanner.Text())
		if exitCommands[text] {
			return nil
		}
		if text == "" {
			continue
		}
		if err := s.send(text); err != nil {
			s.cmd.PrintErrf("chat request failed: %v\n", err)
		}
	}
	return scanner.Err()
}

func printAssistantReply(cmd *cobra.Command, response chat.MessageOutput) {
	reply := strings.TrimSpace(response.Reply)
	if reply == "" {
		cmd.Println("assistant> (no reply)")
		return
	}
	prefix := "assistant> "
	for _, line := range strings.Split(reply, "\n") {
		cmd.Printf("%s%s\n", prefix, strings.TrimRight(line, "\r"))
		prefix = strings.Repeat(" ", len("assistant> "))
	}
	if response.Route != "" {
		cmd.Printf("%s[%s/%s]\n", prefix, response.Route, response.Type)
	}
	if response.RetryAfterSec > 0 {
		cmd.Printf("%sretry in %ds\n", prefix, response.RetryAfterSec)
	}
}

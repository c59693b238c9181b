package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwizi/devops-assistant/internal/apiclient"
	"github.com/dwizi/devops-assistant/internal/pipeline"
	"github.com/dwizi/devops-assistant/internal/routing"
)

func newPipelinesCommand() *cobra.Command {
	var timeoutSec int

	cmd := &cobra.Command{
		Use:     "pipelines",
		Aliases: []string{"pl"},
		Short:   "Inspect pipelines through the API",
	}
	cmd.PersistentFlags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")

	cmd.AddCommand(newPipelinesListCommand(&timeoutSec))
	cmd.AddCommand(newPipelinesShowCommand(&timeoutSec))
	cmd.AddCommand(newPipelinesLogsCommand(&timeoutSec))
	cmd.AddCommand(newPipelinesEscalationsCommand(&timeoutSec))
	return cmd
}

func newPipelinesListCommand(timeoutSec *int) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines with their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(*timeoutSec))
			defer cancel()
			items, err := newAPIClient(cmd, *timeoutSec).ListPipelines(ctx)
			if err != nil {
				return err
			}
			if status = strings.ToLower(strings.TrimSpace(status)); status != "" {
				filtered := items[:0]
				for _, item := range items {
					if string(item.Status) == status {
						filtered = append(filtered, item)
					}
				}
				items = filtered
			}
			printPipelineTable(cmd, items)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only show pipelines with this status (success, failed, running)")
	return cmd
}

func newPipelinesShowCommand(timeoutSec *int) *cobra.Command {
	return &cobra.Command{
		Use:   "show <pipeline-id>",
		Short: "Show one pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(*timeoutSec))
			defer cancel()
			item, err := newAPIClient(cmd, *timeoutSec).GetPipeline(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("ID: %s\n", item.ID)
			cmd.Printf("Name: %s\n", item.Name)
			cmd.Printf("Status: %s\n", item.Status)
			cmd.Printf("Stage: %s\n", item.Stage)
			cmd.Printf("Branch: %s\n", item.Branch)
			cmd.Printf("Commit: %s\n", item.Commit)
			cmd.Printf("Last run: %s\n", item.LastRun)
			if item.Duration != "" {
				cmd.Printf("Duration: %s\n", item.Duration)
			}
			if item.Status == pipeline.StatusRunning {
				cmd.Printf("Progress: %d%%\n", item.Progress)
			}
			if item.Error != "" {
				cmd.Printf("Error: %s\n", item.Error)
			}
			if item.URL != "" {
				cmd.Printf("URL: %s\n", item.URL)
			}
			return nil
		},
	}
}

func newPipelinesLogsCommand(timeoutSec *int) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <pipeline-id>",
		Short: "Print the log excerpt for a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(*timeoutSec))
			defer cancel()
			logs, err := newAPIClient(cmd, *timeoutSec).PipelineLogs(ctx, args[0])
			if err != nil {
				return err
			}
			for _, line := range logs.Logs {
				cmd.Println(line)
			}
			return nil
		},
	}
}

func newPipelinesEscalationsCommand(timeoutSec *int) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "escalations [pipeline-id]",
		Short: "List recent escalations and their delivery status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipelineID := ""
			if len(args) == 1 {
				pipelineID = args[0]
			}
			ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(*timeoutSec))
			defer cancel()
			items, err := newAPIClient(cmd, *timeoutSec).ListEscalations(ctx, pipelineID, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("No escalations.")
				return nil
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ID\tPIPELINE\tSTATUS\tCHANNEL\tATTEMPTS\tCREATED")
			for _, item := range items {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\t%s\n", item.ID, item.PipelineID, item.Status, firstNonEmpty(item.Channel, "-"), item.Attempts, pipeline.Timestamp(item.CreatedAt))
			}
			return writer.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max escalations to list")
	return cmd
}

func newActionCommand(logger *slog.Logger) *cobra.Command {
	var timeoutSec int
	cmd := &cobra.Command{
		Use:   "action <pipeline-id> <retry|rollback|escalate>",
		Short: "Run a pipeline action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := pipeline.ParseAction(args[1]); err != nil {
				return errors.New(pipeline.InvalidActionMessage)
			}
			ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(timeoutSec))
			defer cancel()
			result, err := newAPIClient(cmd, timeoutSec).Action(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			logger.Debug("pipeline action sent", "pipeline_id", args[0], "action", result.Action, "success", result.Success)
			cmd.Println(result.Message)
			return nil
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")
	return cmd
}

func newRouteCommand() *cobra.Command {
	var (
		remote     bool
		timeoutSec int
	)
	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Show which chat path a message would take",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			decision := routing.Classify(text)
			if remote {
				ctx, cancel := context.WithTimeout(commandContext(cmd), boundedTimeout(timeoutSec))
				defer cancel()
				var err error
				decision, err = newAPIClient(cmd, timeoutSec).Route(ctx, text)
				if err != nil {
					return err
				}
			}
			cmd.Printf("Route: %s\n", decision.Route)
			cmd.Printf("Reason: %s\n", decision.Reason)
			if decision.Match != "" {
				cmd.Printf("Match: %s\n", decision.Match)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the running server instead of classifying locally")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 30, "request timeout in seconds")
	return cmd
}

func printPipelineTable(cmd *cobra.Command, items []pipeline.Pipeline) {
	if len(items) == 0 {
		cmd.Println("No pipelines.")
		return
	}
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tSTATUS\tSTAGE\tBRANCH\tCOMMIT\tLAST RUN")
	for _, item := range items {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Status, item.Stage, item.Branch, item.Commit, item.LastRun)
	}
	_ = writer.Flush()
}

func newAPIClient(cmd *cobra.Command, timeoutSec int) *apiclient.Client {
	return apiclient.New(loadConfig(cmd)).WithTimeout(boundedTimeout(timeoutSec))
}

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/devops-assistant/internal/app"
	"github.com/dwizi/devops-assistant/internal/config"
	"github.com/dwizi/devops-assistant/internal/tui"
)

// version is overridden at build time with -ldflags "-X ...cli.version=...".
var version = "0.1.0"

const (
	flagAPIURL   = "api-url"
	flagAPIToken = "token"
)

func NewRoot(logger *slog.Logger) *cobra.Command {
	if logger == nil {
		logger = slog.Default()
	}
	root := &cobra.Command{
		Use:          "devops-assistant",
		Short:        "CI/CD pipeline dashboard API with a keyword-routed DevOps chat assistant",
		SilenceUsage: true,
	}
	root.PersistentFlags().String(flagAPIURL, "", "API base URL for client commands (overrides DEVOPS_ASSISTANT_API_URL)")
	root.PersistentFlags().String(flagAPIToken, "", "bearer token for client commands (overrides DEVOPS_ASSISTANT_API_TOKEN)")

	root.AddCommand(
		newServeCommand(logger),
		newPipelinesCommand(),
		newActionCommand(logger),
		newRouteCommand(),
		newChatCommand(logger),
		newTUICommand(logger),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the environment, then applies the persistent flag
// overrides when the command was parsed with them.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if cmd == nil {
		return cfg
	}
	if value := flagValue(cmd, flagAPIURL); value != "" {
		cfg.APIURL = value
	}
	if value := flagValue(cmd, flagAPIToken); value != "" {
		cfg.APIToken = value
	}
	return cfg
}

// flagValue resolves local and inherited persistent flags alike.
func flagValue(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(flag.Value.String())
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline API, stream and chat router until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := app.New(config.FromEnv(), version, logger.With("component", "runtime"))
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runtime.Run(ctx)
		},
	}
}

func newTUICommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(loadConfig(cmd), logger)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

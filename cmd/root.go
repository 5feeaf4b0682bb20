package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/app"
	"github.com/ovsienko/statusgate/internal/config"
	"github.com/ovsienko/statusgate/internal/history"
	"github.com/ovsienko/statusgate/internal/pipeline"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface the commands use. Tests can swap the
// factory below for a mock implementation.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	History() history.Store
	Pipeline() *pipeline.Pipeline
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statusgate",
		Short: "Resilient status fetcher for a bot-mitigated endpoint.",
		Long: `statusgate retrieves application status records from an upstream
endpoint protected by bot mitigation. It escalates through a fingerprinted
HTTP client, a stealth-patched headless browser and a pool of verified
public proxies, and delivers diagnostics to an operator channel when every
tier fails.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE:
		// build the service container once and hand it down via context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables override it)")

	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the command
// context so in-flight fetches tear down their browsers before exit.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

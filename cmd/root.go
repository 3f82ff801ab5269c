// Package cmd defines and implements the CLI commands of the borsa-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/app"
	"github.com/JakeFAU/borsa-crawler/internal/config"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Workflows are the harvesting runs the batch commands trigger.
type Workflows interface {
	ScrapeAndInsertIsins(ctx context.Context) (runner.Info, error)
	ScrapeAndInsertShares(ctx context.Context) (runner.Info, error)
	RefreshShares(ctx context.Context, olderThan time.Duration) (runner.Info, error)
}

// App is the application surface the commands use, so tests can inject a fake.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Workflows() Workflows
	Serve(ctx context.Context) error
}

type builtApp struct {
	*app.App
}

func (b builtApp) Workflows() Workflows { return b.Runner() }

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	a, err := app.Build(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	return builtApp{a}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "borsa-crawler",
		Short: "Harvests share identifiers and market data from Borsa Italiana.",
		Long: `borsa-crawler walks the Borsa Italiana A-Z share listing, scrapes the
"dati completi" page of every discovered ISIN and keeps the results in
Postgres (or in memory). It runs one-shot harvests from the command line
or serves a read API that can also queue runs.`,
		SilenceUsage: true,

		// Builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")

	cmd.AddCommand(
		newServeCmd(),
		newIsinsCmd(),
		newSharesCmd(),
		newRefreshCmd(),
		newMigrateCmd(&cfgFile),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

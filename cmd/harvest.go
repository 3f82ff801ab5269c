package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

func newIsinsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "isins",
		Short: "Scrapes the A-Z listing and inserts every ISIN found",
		RunE: runWorkflow(func(ctx context.Context, w Workflows, _ *cobra.Command) (runner.Info, error) {
			return w.ScrapeAndInsertIsins(ctx)
		}),
	}
}

func newSharesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shares",
		Short: "Scrapes every stored ISIN and upserts its market data",
		RunE: runWorkflow(func(ctx context.Context, w Workflows, _ *cobra.Command) (runner.Info, error) {
			return w.ScrapeAndInsertShares(ctx)
		}),
	}
}

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-scrapes only shares whose data is stale",
		RunE: runWorkflow(func(ctx context.Context, w Workflows, cmd *cobra.Command) (runner.Info, error) {
			olderThan, err := cmd.Flags().GetDuration("older-than")
			if err != nil {
				return runner.Info{}, err
			}
			if olderThan <= 0 {
				appInstance, err := resolveApp(ctx)
				if err != nil {
					return runner.Info{}, err
				}
				olderThan = appInstance.Config().Scrape.RefreshAfter()
			}
			return w.RefreshShares(ctx, olderThan)
		}),
	}
	cmd.Flags().Duration("older-than", 0, "staleness threshold (default scrape.refresh_after_minutes)")
	return cmd
}

// runWorkflow runs one harvest and prints its summary as JSON.
func runWorkflow(run func(context.Context, Workflows, *cobra.Command) (runner.Info, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		start := time.Now()
		info, err := run(cmd.Context(), appInstance.Workflows(), cmd)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		appInstance.Logger().Info("command finished",
			zap.String("command", cmd.Name()),
			zap.Duration("elapsed", time.Since(start)),
		)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
}

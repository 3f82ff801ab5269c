package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/borsa-crawler/internal/config"
	pgstore "github.com/JakeFAU/borsa-crawler/internal/storage/postgres"
)

// migrate is a variable so tests can replace it.
var migrate = pgstore.Migrate

func newMigrateCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Applies or rolls back the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(pgstore.Up), string(pgstore.Down)},
		// Migrations need only the DSN, not the whole application.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			dir := pgstore.Direction(args[0])
			if err := migrate(cfg.DB.DSN, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s complete\n", dir)
			return nil
		},
	}
	return cmd
}

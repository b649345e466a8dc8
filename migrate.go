package main

import (
	"fmt"
	"os"

	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/postgres"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the Postgres schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := postgres.MigrateUp
			if len(args) == 1 {
				direction = args[0]
			}
			if url == "" {
				_ = godotenv.Load()
				url = os.Getenv("DB_URL")
			}
			if url == "" {
				return fmt.Errorf("migrate: --db-url or DB_URL is required")
			}
			if err := postgres.Migrate(url, direction); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", direction)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "db-url", "", "Postgres connection URL (defaults to DB_URL)")
	return cmd
}

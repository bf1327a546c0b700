package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mojocode/api/internal/config"
	"mojocode/api/internal/store"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if dryRun {
				pending, err := store.PendingMigrations(ctx, db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				for _, version := range pending {
					fmt.Fprintln(out, version)
				}
				fmt.Fprintf(out, "%d pending\n", len(pending))
				return nil
			}

			applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d applied\n", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	return cmd
}

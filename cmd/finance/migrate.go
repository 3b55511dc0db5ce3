package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mp3fbf/finance-analyzer/internal/cli"
	"github.com/mp3fbf/finance-analyzer/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every command migrates on open, so this is only needed to prepare a database
ahead of time or to inspect its version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")
			ctx := cmd.Context()
			dbPath := appConfig.Database.Path

			store, err := storage.NewSQLiteStorage(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			current, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			if status {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle("Database Migration Status"))
				fmt.Fprintf(cmd.OutOrStdout(), "  Database: %s\n  Current version: %d\n  Latest version: %d\n",
					dbPath, current, storage.ExpectedSchemaVersion)
				return nil
			}

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database at schema version %d (%s)", storage.ExpectedSchemaVersion, dbPath)))
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")
	return cmd
}

package main

import (
	"fmt"

	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := connect()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database %s\n", cfg.DBType, cfg.DBDatabase)
			return nil
		},
	}
}

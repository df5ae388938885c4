package main

import (
	"fmt"
	"io"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the tables the migrations create",
		Long: `Migrate a scratch in-memory SQLite database and print the DDL of every
table it creates. Needs no configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSchema(cmd.OutOrStdout())
		},
	}
}

func printSchema(w io.Writer) error {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	var tables []struct {
		Name string
		SQL  string
	}
	if err := db.Raw("SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name").
		Scan(&tables).Error; err != nil {
		return err
	}
	for _, table := range tables {
		fmt.Fprintf(w, "\n=== Table: %s ===\n%s\n", table.Name, table.SQL)
	}
	return nil
}

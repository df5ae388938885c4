// root.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"fmt"
	"os"

	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the cmdbctl root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cmdbctl",
		Short:         "Operator tool for the jam-build cmdb data service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				return os.Setenv("ENV_FILE", opts.EnvFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.EnvFile, "env-file", "e", "", "path to a .env file")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewDevDBCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// connect loads the configuration and opens the app pool
func connect() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}

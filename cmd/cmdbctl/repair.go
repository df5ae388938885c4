package main

import (
	"encoding/json"

	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/spf13/cobra"
)

// NewRepairCommand creates the repair command
func NewRepairCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Recount collection items and drop one-sided likes",
		Long: `Recompute every collection's numberOfItems from its item set and remove
like edges recorded on only one of the user and item sides. Prints the
report as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer database.Close(db)

			engine := cascade.New(store.NewGormStore(db), cascade.ModeTransaction, cascade.Collaborators{})
			report, err := engine.Repair(cmd.Context())
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil && err == nil {
					err = encErr
				}
			}
			return err
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/jam-build-cmdb/internal/testenv"
	"github.com/spf13/cobra"
)

// DevDBOptions holds flags for the devdb command
type DevDBOptions struct {
	*RootOptions
	AuthzImage string
	Server     bool
}

// NewDevDBCommand creates the devdb command
func NewDevDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devdb",
		Short: "Run the development containers until interrupted",
		Long: `Start the database, and optionally the Authorizer and the cmdb server, as
containers configured from the environment. The server image is built from
the Dockerfile when it does not exist. Endpoints are printed once the
containers are ready; interrupt to terminate them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				if err := godotenv.Load(opts.EnvFile); err != nil {
					return fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
				}
			}
			o := testenv.OptionsFromEnv()
			if opts.AuthzImage != "" {
				o.AuthzImage = opts.AuthzImage
				o.WithAuthorizer = true
			}
			o.WithServer = opts.Server && o.WithAuthorizer

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			env, err := testenv.Start(ctx, o, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "DB_HOST=%s\nDB_PORT=%s\n", env.DBHost, env.DBPort)
			if env.AuthzURL != "" {
				fmt.Fprintf(out, "AUTHZ_URL=%s\n", env.AuthzURL)
			}
			if env.BaseURL != "" {
				fmt.Fprintf(out, "BASE_URL=%s\n", env.BaseURL)
			}

			<-ctx.Done()
			fmt.Fprintln(out, "Terminating containers...")
			return env.Terminate(context.WithoutCancel(ctx))
		},
	}

	cmd.Flags().StringVar(&opts.AuthzImage, "authorizer", "", "Authorizer image to run (defaults to AUTHZ_IMAGE)")
	cmd.Flags().BoolVar(&opts.Server, "server", true, "also run the cmdb server when the Authorizer runs")

	return cmd
}

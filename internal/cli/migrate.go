package cli

import (
	"fmt"
	"strconv"

	"github.com/comanda-pos/api/internal/database"
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command and its up/down/version subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.MigrateUp(rootOpts.Config.DatabaseURL); err != nil {
				return err
			}
			return printVersion(cmd, rootOpts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid steps %q: must be a positive integer", args[0])
				}
				steps = n
			}
			if err := database.MigrateDown(rootOpts.Config.DatabaseURL, steps); err != nil {
				return err
			}
			return printVersion(cmd, rootOpts)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, rootOpts)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, opts *RootOptions) error {
	version, dirty, err := database.MigrationVersion(opts.Config.DatabaseURL)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}

// Package cli implements posctl, the administration tool.
package cli

import (
	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	DatabaseURL string
	Config      *config.Config
}

// NewRootCommand creates the root command for posctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "Administration tool for the order service",
		Long:  "posctl migrates the database, loads bootstrap data and issues tokens for the order service.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Configure(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
			if opts.DatabaseURL != "" {
				cfg.DatabaseURL = opts.DatabaseURL
			}
			opts.Config = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "database URL (default from DATABASE_URL)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/seed"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load staff, floor, menu and dispatch sectors from a YAML fixture",
		Long: `Load bootstrap data from a YAML fixture in one transaction.

Products reference categories and sectors by name; names match without
regard to case or accents. Use --dry-run to only validate the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			fixture, err := seed.Load(f)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
				return nil
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, rootOpts.Config.DatabaseURL, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			tx, err := pool.Begin(ctx)
			if err != nil {
				return fmt.Errorf("begin tx: %w", err)
			}
			defer tx.Rollback(ctx) //nolint:errcheck

			sum, err := seed.Apply(ctx, database.New(tx), fixture)
			if err != nil {
				return err
			}
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}

			log.Info().Str("file", args[0]).Msg("seed applied")
			fmt.Fprintf(cmd.OutOrStdout(),
				"employees=%d customers=%d categories=%d printers=%d sectors=%d products=%d variation_types=%d tables=%d\n",
				sum.Employees, sum.Customers, sum.Categories, sum.Printers,
				sum.Sectors, sum.Products, sum.VariationTypes, sum.Tables,
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the fixture without writing")
	return cmd
}

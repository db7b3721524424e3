package cli

import (
	"fmt"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command, which signs principal tokens
// for devices and tests.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		employeeID int64
		username   string
		role       string
		system     bool
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for an employee or the system account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := rootOpts.Config.JWTSecret
			var token string
			var err error
			if system {
				token, err = auth.GenerateSystemToken(secret, rootOpts.Config.SystemAccount, ttl)
			} else {
				if employeeID <= 0 {
					return fmt.Errorf("--employee is required unless --system is set")
				}
				token, err = auth.GenerateToken(secret, employeeID, username, role, ttl)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&employeeID, "employee", 0, "employee id")
	cmd.Flags().StringVar(&username, "username", "", "username recorded in the token")
	cmd.Flags().StringVar(&role, "role", "WAITER", "employee role")
	cmd.Flags().BoolVar(&system, "system", false, "sign for the fixed system account")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/spf13/cobra"
)

var (
	whoamiUser   bool
	whoamiTenant bool
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user the token belongs to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiCommand(cmd.Context(), cmd.OutOrStdout(), whoamiUser, whoamiTenant)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
	whoamiCmd.Flags().BoolVarP(&whoamiUser, "user", "u", false, "print only the user name")
	whoamiCmd.Flags().BoolVarP(&whoamiTenant, "tenant", "t", false, "print only the tenant")
	whoamiCmd.MarkFlagsMutuallyExclusive("user", "tenant")
}

func whoamiCommand(ctx context.Context, stdout io.Writer, userOnly, tenantOnly bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	user, err := a.client.WhoAmI(ctx)
	if err != nil {
		return errors.Wrap(err, "Failed to fetch user information")
	}

	switch {
	case machineMode:
		return WriteJSONSuccess(stdout, user)
	case userOnly:
		fmt.Fprintln(stdout, user.Username)
	case tenantOnly:
		fmt.Fprintln(stdout, user.Tenant)
	default:
		fmt.Fprintf(stdout, "%s(%s)\n", user.Username, user.Tenant)
	}
	return nil
}

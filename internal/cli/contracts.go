package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func contractsCmd(load EnvLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "Contract maintenance",
	}
	cmd.AddCommand(contractsCloseDueCmd(load))
	return cmd
}

func contractsCloseDueCmd(load EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "close-due",
		Short: "Close active contracts whose auto-close time has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				closed, err := env.Services.Ledger.CloseDueContracts(cmd.Context())
				if err != nil {
					return fmt.Errorf("close due contracts: %w (closed %d before failing)", err, closed)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s closed %d contracts\n", okLabel, closed)
				return nil
			})
		},
	}
}

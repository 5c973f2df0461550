package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func phonesCmd(load EnvLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phones",
		Short: "Phone exclusivity key maintenance",
	}
	cmd.AddCommand(phonesRenormalizeCmd(load))
	return cmd
}

func phonesRenormalizeCmd(load EnvLoader) *cobra.Command {
	var (
		dryRun    bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "renormalize",
		Short: "Recompute normalized phone keys from the raw phones",
		Long: `Recompute every stored normalized phone from its original value.

Run this after a change to the normalization rules. Safe to run multiple
times.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				report, err := env.Services.Intake.RenormalizePhones(cmd.Context(), dryRun, batchSize)
				if err != nil {
					return fmt.Errorf("renormalize phones: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s scanned %d phone records, %d stale\n", modeLabel(dryRun), report.Scanned, report.Changed)
				if dryRun && report.Changed > 0 {
					fmt.Fprintln(out, "No changes made. Run without --dry-run to apply.")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report stale keys without writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "records per batch")
	return cmd
}

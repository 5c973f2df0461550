package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func leadsCmd(load EnvLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Lead inspection and backfills",
	}
	cmd.AddCommand(leadsMatchCmd(load))
	cmd.AddCommand(leadsGeocodeCmd(load))
	return cmd
}

func leadsMatchCmd(load EnvLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "match <lead-id>",
		Short: "Print the stores eligible for a lead, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lead id %q", args[0])
			}

			return withEnv(cmd, load, func(env *Env) error {
				matches, err := env.Services.Matching.FindStoresForLead(cmd.Context(), leadID)
				if err != nil {
					return fmt.Errorf("match lead: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(matches) == 0 {
					fmt.Fprintf(out, "%s no eligible stores\n", noneLabel)
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STORE\tNAME\tCOMPANY\tDISTANCE")
				for _, m := range matches {
					fmt.Fprintf(w, "%s\t%s\t%s\t%.2f km\n", m.StoreID, m.StoreName, m.CompanyID, m.DistanceKm)
				}
				return w.Flush()
			})
		},
	}
}

func leadsGeocodeCmd(load EnvLoader) *cobra.Command {
	var (
		dryRun    bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Fill coordinates for leads that only have an address",
		Long: `Geocode stored leads that have an address but no coordinates.

Requires GEOCODER_ENABLED=true. Requests are throttled to the geocoder's
usage policy, so large backlogs take a while.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, load, func(env *Env) error {
				if !env.GeocoderEnabled {
					return fmt.Errorf("geocoder disabled: set GEOCODER_ENABLED=true")
				}
				report, err := env.Services.Intake.GeocodeUnplaced(cmd.Context(), dryRun, batchSize)
				if err != nil {
					return fmt.Errorf("geocode leads: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s scanned %d leads, placed %d\n", modeLabel(dryRun), report.Scanned, report.Geocoded)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "geocode without writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", 25, "leads per batch")
	return cmd
}

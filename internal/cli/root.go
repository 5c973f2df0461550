// Package cli implements allocctl, the operator CLI for maintenance jobs
// that run outside the HTTP API.
package cli

import (
	"context"
	"fmt"

	"leadrouter_backend/internal/allocation"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Env is what the commands run against.
type Env struct {
	Services allocation.Services
	// GeocoderEnabled is false when no geocoder was wired into Services.
	GeocoderEnabled bool
	Close           func()
}

// EnvLoader builds the command environment lazily so --help never touches
// the database.
type EnvLoader func(ctx context.Context) (*Env, error)

var (
	okLabel   = color.New(color.FgGreen).Sprint("OK")
	dryLabel  = color.New(color.FgYellow).Sprint("DRY RUN")
	noneLabel = color.New(color.FgYellow).Sprint("NONE")
)

// NewRootCmd returns the allocctl command tree.
func NewRootCmd(load EnvLoader) *cobra.Command {
	root := &cobra.Command{
		Use:   "allocctl",
		Short: "Lead allocation maintenance commands",
		Long: `allocctl runs maintenance jobs against the allocation database:
phone key backfills, contract auto-close and eligibility checks.`,
		SilenceUsage: true,
	}

	root.AddCommand(phonesCmd(load))
	root.AddCommand(contractsCmd(load))
	root.AddCommand(leadsCmd(load))

	return root
}

// withEnv loads the environment for one command run and releases it after.
func withEnv(cmd *cobra.Command, load EnvLoader, fn func(env *Env) error) error {
	env, err := load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(env)
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return dryLabel
	}
	return okLabel
}

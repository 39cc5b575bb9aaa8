package main

import (
	"encoding/json"

	"github.com/fieldops/backend/internal/app"
	"github.com/spf13/cobra"
)

func newProofsCmd(opts *rootOptions) *cobra.Command {
	proofs := &cobra.Command{
		Use:   "proofs",
		Short: "Manage uploaded payment proofs",
	}

	var dryRun bool
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete stored proofs that no invoice references",
		Long: `Proofs are uploaded before the settlement transaction commits. When the
transaction fails the object stays in the bucket. cleanup lists the bucket,
skips objects younger than settlement.orphan_proof_grace and deletes the rest
unless an invoice points at them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(c *app.Container) error {
				report, err := c.ProofCleanup.Cleanup(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
	cleanup.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without deleting them")

	proofs.AddCommand(cleanup)
	return proofs
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fieldops/backend/internal/app"
	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/spf13/cobra"
)

var errUnbalanced = errors.New("ledger is out of balance")

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare every account balance with its ledger",
		Long: `Recompute each vault and custody balance from its transaction ledger and
report accounts whose stored balance, ledger sum or balance chain disagree.

Exits non-zero when any discrepancy is found.`,
		Example: `  settlectl reconcile
  settlectl reconcile --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(c *app.Container) error {
				found, err := c.Reconciliation.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if err := writeDiscrepancies(cmd.OutOrStdout(), found, asJSON); err != nil {
					return err
				}
				if len(found) > 0 {
					return fmt.Errorf("%w: %d account(s)", errUnbalanced, len(found))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print discrepancies as JSON")
	return cmd
}

func writeDiscrepancies(w io.Writer, found []settlement.Discrepancy, asJSON bool) error {
	if asJSON {
		if found == nil {
			found = []settlement.Discrepancy{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "all accounts balanced")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tACCOUNT\tBALANCE\tLEDGER SUM\tCHAIN BREAKS")
	for _, d := range found {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", d.AccountKind, d.AccountID, d.Balance.StringFixed(2), d.LedgerSum.StringFixed(2), len(d.ChainBreaks))
	}
	return tw.Flush()
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tally/internal/app"
	"tally/internal/config"
	"tally/internal/services"
)

// errViolations makes the process exit non-zero when a sweep leaves state broken.
var errViolations = errors.New("reconciliation found unresolved violations")

func reconcileCmd() *cobra.Command {
	var (
		fix         bool
		concurrency int
		pageSize    int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check stored accounts and budgets against the ledger invariants",
		Long: `Walk every account and budget, verify balances are non-negative, allocations fit
their budget total and spent amounts match the transaction record.

With --fix, drifted spent amounts are recomputed. The command exits non-zero
when any violation remains.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cfg.ReconcileConcurrency
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.Reconcile.Reconcile(cmd.Context(), services.ReconcileOptions{
				Fix:         fix,
				Concurrency: concurrency,
				PageSize:    pageSize,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}

			if !report.Clean() {
				return errViolations
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "recompute drifted spent amounts")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "budgets checked in parallel")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "rows loaded per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, report *services.ReconcileReport) {
	fmt.Fprintf(w, "accounts checked: %d\nbudgets checked:  %d\nviolations:       %d\n",
		report.AccountsChecked, report.BudgetsChecked, len(report.Violations))
	if len(report.Violations) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nINVARIANT\tRESOURCE\tFIXED\tDETAIL")
	for _, v := range report.Violations {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", v.Invariant, v.ResourceID, v.Fixed, v.Detail)
	}
	_ = tw.Flush()
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/period"
	"tally/internal/validator"
)

func periodCmd() *cobra.Command {
	var (
		start    string
		typ      string
		next     bool
		previous bool
	)

	cmd := &cobra.Command{
		Use:   "period",
		Short: "Print the budget window for a start date and period type",
		Example: `  tallyctl period --start 2025-01-31 --type monthly
  tallyctl period --start 2024-02-01 --type monthly --next`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if next && previous {
				return errors.New("--next and --previous are mutually exclusive")
			}
			s, err := time.Parse(validator.DateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", start)
			}
			t, err := period.Parse(typ)
			if err != nil {
				return err
			}

			w := period.NewWindow(s, t)
			switch {
			case next:
				w = period.Next(w)
			case previous:
				w = period.Previous(w)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s .. %s (%d days)\n",
				w.Type, w.Start.Format(validator.DateLayout), w.End.Format(validator.DateLayout), w.Days())
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&typ, "type", string(period.Monthly), "daily, weekly, monthly, quarterly or yearly")
	cmd.Flags().BoolVar(&next, "next", false, "print the following window")
	cmd.Flags().BoolVar(&previous, "previous", false, "print the preceding window")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

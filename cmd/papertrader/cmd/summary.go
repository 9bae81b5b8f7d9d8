package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/report"
)

func newSummaryCmd(opts *options) *cobra.Command {
	var asJSON bool
	var orgPath string
	c := &cobra.Command{
		Use:   "summary [instrument]",
		Short: "Show position and P&L for one or all instruments",
		Long: `Print the position and P&L summary.

Without an instrument every instrument in the event log is listed.

Examples:
  papertrader summary BTC-USD
  papertrader summary --json
  papertrader summary --org review.org`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(func(e *env) error {
				ctx := cmd.Context()
				var sums []ledger.Summary
				if len(args) == 1 {
					s, err := e.book.Summary(ctx, args[0])
					if err != nil {
						return err
					}
					sums = []ledger.Summary{s}
				} else {
					var err error
					if sums, err = e.book.Summaries(ctx); err != nil {
						return err
					}
				}

				acct := e.cfg.Account.Report()
				if orgPath != "" {
					if err := report.NewReview(sums, acct, time.Now()).WriteOrg(orgPath); err != nil {
						return fmt.Errorf("write org: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "review written to %s\n", orgPath)
					return nil
				}

				w := cmd.OutOrStdout()
				if asJSON {
					recs := make([]report.Record, len(sums))
					for i, s := range sums {
						recs[i] = report.FromSummary(s, acct)
					}
					var v any = recs
					if len(args) == 1 {
						v = recs[0]
					}
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(v)
				}

				if len(sums) == 0 {
					fmt.Fprintln(w, "no instruments")
				}
				for _, s := range sums {
					fmt.Fprintln(w, report.Text(s, acct))
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON records")
	c.Flags().StringVar(&orgPath, "org", "", "write an Org-mode review page to this path")
	return c
}

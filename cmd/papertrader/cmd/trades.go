package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/ledger"
)

func newTradesCmd(opts *options) *cobra.Command {
	var day string
	c := &cobra.Command{
		Use:   "trades [trade-id]",
		Short: "Show closed trades as Org-mode entries",
		Long: `Query closed trades from the journal.

With a trade id, print that trade. Otherwise print the trades closed on
--day (default today, local time).

Examples:
  papertrader trades
  papertrader trades --day 2025-03-01
  papertrader trades 01JNF3R8W6ZQ1V4Q2K5T7Y9B3C`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(func(e *env) error {
				ctx := cmd.Context()
				w := cmd.OutOrStdout()
				if len(args) == 1 {
					if _, err := id.Time(args[0]); err != nil {
						return fmt.Errorf("%w: %q is not a trade id", errs.ErrValidation, args[0])
					}
					t, err := e.journal.GetTrade(ctx, args[0])
					if err != nil {
						return fmt.Errorf("get trade: %w", err)
					}
					fmt.Fprintln(w, journal.FormatTradeOrg(t))
					return nil
				}

				loc := time.Local
				if day == "" {
					day = time.Now().In(loc).Format("2006-01-02")
				}
				start, end, err := dayBounds(loc, day)
				if err != nil {
					return err
				}
				recs, err := e.journal.ListTradesClosedBetween(ctx, start, end)
				if err != nil {
					return fmt.Errorf("query trades: %w", err)
				}
				if len(recs) == 0 {
					fmt.Fprintf(w, "no trades closed on %s\n", day)
					return nil
				}
				fmt.Fprintln(w, journal.FormatTradesOrg(recs))
				return nil
			})
		},
	}
	c.Flags().StringVar(&day, "day", "", "day to list, YYYY-MM-DD (default today)")
	return c
}

func newExportCmd(opts *options) *cobra.Command {
	var instrument string
	c := &cobra.Command{
		Use:   "export <trades.csv>",
		Short: "Export closed trades to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(func(e *env) error {
				ctx := cmd.Context()
				names := []string{instrument}
				if instrument == "" {
					var err error
					if names, err = e.book.Instruments(ctx); err != nil {
						return err
					}
				}

				var all []ledger.ClosedTrade
				for _, n := range names {
					trades, err := e.book.Trades(ctx, n)
					if err != nil {
						return err
					}
					all = append(all, trades...)
				}
				sort.SliceStable(all, func(i, j int) bool { return all[i].ClosedAt.Before(all[j].ClosedAt) })

				if err := journal.ExportTradesCSV(args[0], all); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d trades to %s\n", len(all), args[0])
				return nil
			})
		},
	}
	c.Flags().StringVar(&instrument, "instrument", "", "only this instrument")
	return c
}

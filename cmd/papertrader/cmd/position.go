package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/ledger"
)

func newTickCmd(opts *options) *cobra.Command {
	var at string
	c := &cobra.Command{
		Use:   "tick <instrument> <price>",
		Short: "Mark an instrument to a new price",
		Long: `Feed one price observation to the instrument's position.

The tick updates the high and low water marks, may move a breakeven or
trailing stop, and closes the position if the stop or take profit is hit.
Ticks not newer than the last one are ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseDecimal("price", args[1])
			if err != nil {
				return err
			}
			when, err := parseAt(at)
			if err != nil {
				return err
			}
			return opts.withEnv(func(e *env) error {
				out, err := e.book.OnPrice(cmd.Context(), args[0], price, when)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return printStatus(cmd, e, args[0])
			})
		},
	}
	c.Flags().StringVar(&at, "at", "", "tick time, RFC3339 (default now)")
	return c
}

func printOutcome(cmd *cobra.Command, out ledger.Outcome) {
	w := cmd.OutOrStdout()
	if out.Stale {
		fmt.Fprintln(w, "stale tick ignored")
	}
	if out.StopMovedFrom != nil && out.Position != nil {
		fmt.Fprintf(w, "stop moved %s -> %s\n", out.StopMovedFrom, out.Position.StopPrice)
	}
	if t := out.Closed; t != nil {
		printClosed(cmd, *t)
	}
}

func printClosed(cmd *cobra.Command, t ledger.ClosedTrade) {
	fmt.Fprintf(cmd.OutOrStdout(), "closed %s %s %s at %s pnl=%s\n",
		t.Direction, t.Instrument, t.ExitReason, t.ExitPrice, t.RealizedPnL.StringFixed(2))
}

func newAdjustCmd(opts *options) *cobra.Command {
	var stop, tp, at string
	c := &cobra.Command{
		Use:   "adjust <instrument>",
		Short: "Move the stop or take profit of the open position",
		Long: `Override the stop and/or take profit of the open position.

A stop may only tighten; moving it away from the current price is refused.

Example:
  papertrader adjust BTC-USD --stop 50100 --tp 52000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ledger.AdjustRequest
			var err error
			if req.Stop, err = optionalDecimal("stop", stop); err != nil {
				return err
			}
			if req.TakeProfit, err = optionalDecimal("tp", tp); err != nil {
				return err
			}
			if req.At, err = parseAt(at); err != nil {
				return err
			}
			return opts.withEnv(func(e *env) error {
				pos, err := e.book.Adjust(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "adjusted %s stop=%s tp=%s\n", pos.Instrument, pos.StopPrice, orNone(pos.TakeProfit))
				return printStatus(cmd, e, args[0])
			})
		},
	}
	c.Flags().StringVar(&stop, "stop", "", "new stop price")
	c.Flags().StringVar(&tp, "tp", "", "new take profit price")
	c.Flags().StringVar(&at, "at", "", "adjust time, RFC3339 (default now)")
	return c
}

func newCloseCmd(opts *options) *cobra.Command {
	var at string
	c := &cobra.Command{
		Use:   "close <instrument> <price>",
		Short: "Close the open position at a price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseDecimal("price", args[1])
			if err != nil {
				return err
			}
			when, err := parseAt(at)
			if err != nil {
				return err
			}
			return opts.withEnv(func(e *env) error {
				t, err := e.book.Close(cmd.Context(), args[0], price, when)
				if err != nil {
					return err
				}
				printClosed(cmd, t)
				return printStatus(cmd, e, args[0])
			})
		},
	}
	c.Flags().StringVar(&at, "at", "", "close time, RFC3339 (default now)")
	return c
}

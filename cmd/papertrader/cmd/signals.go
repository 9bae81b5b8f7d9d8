package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/rustyeddy/papertrader/signals"
)

func newSignalsCmd(opts *options) *cobra.Command {
	var instrument, side string
	var asJSON bool
	c := &cobra.Command{
		Use:   "signals <bars.csv>",
		Short: "Compute RSI, EMA trend, OBV and ATR from a bar file",
		Long: `Read OHLCV bars (time,open,high,low,close,volume) and print the
signal snapshot at the last bar.

With --side, also print the ATR-based stop, target and size the open
command would use at the last close.

Example:
  papertrader signals btc_1h.csv --instrument BTC-USD --side long`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			bars, err := market.LoadBarsCSV(args[0])
			if err != nil {
				return fmt.Errorf("%w: load bars: %v", errs.ErrValidation, err)
			}
			if instrument == "" {
				instrument = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			req, err := cfg.Signals.Request()
			if err != nil {
				return err
			}
			snap, err := signals.NewHub().Snapshot(instrument, bars, req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(w, snap.Summary())
			}
			if side == "" {
				return nil
			}

			dir, err := market.ParseDirection(side)
			if err != nil {
				return fmt.Errorf("%w: %v", errs.ErrValidation, err)
			}
			atrF, err := snap.ATR.Force("atr")
			if err != nil {
				return err
			}
			price := decimal.NewFromFloat(snap.Price)
			atr := decimal.NewFromFloat(atrF)
			stop, err := risk.SuggestStop(price, atr, dir, decimal.NewFromFloat(cfg.Risk.StopATR))
			if err != nil {
				return err
			}
			size, err := risk.SizeForRisk(dir, decimal.NewFromFloat(cfg.Risk.RiskUSD), price, stop)
			if err != nil {
				return err
			}
			tp := "none"
			rr := "-"
			if cfg.Risk.TakeATR > 0 {
				target, err := risk.SuggestTarget(price, atr, dir, decimal.NewFromFloat(cfg.Risk.TakeATR))
				if err != nil {
					return err
				}
				tp = target.StringFixed(2)
				rr = risk.RR(price, stop, target).StringFixed(2)
			}
			fmt.Fprintf(w, "Plan %s %s entry=%s stop=%s tp=%s size=%s risk=%s rr=%s\n",
				dir, instrument, price.StringFixed(2), stop.StringFixed(2), tp, truncate(size, 8),
				risk.PlannedRisk(size, price, stop).StringFixed(2), rr)
			return nil
		},
	}
	c.Flags().StringVar(&instrument, "instrument", "", "instrument name (default file name)")
	c.Flags().StringVar(&side, "side", "", "also print a long or short ATR plan")
	c.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return c
}

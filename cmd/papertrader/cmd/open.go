package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/report"
	"github.com/rustyeddy/papertrader/risk"
)

type openFlags struct {
	side     string
	price    string
	size     string
	riskUSD  string
	volSize  bool
	stop     string
	atr      string
	stopATR  string
	tp       string
	tpATR    string
	trail    bool
	beATR    string
	startATR string
	distATR  string
	strategy string
	notes    string
	at       string
	force    bool
}

func newOpenCmd(opts *options) *cobra.Command {
	f := &openFlags{}
	c := &cobra.Command{
		Use:   "open <instrument>",
		Short: "Open a position",
		Long: `Open a long or short position at the given price.

The stop comes from --stop or, with --atr, from --stop-atr multiples of the
ATR. Size comes from --size, or from a dollar risk budget (--risk, default
risk.risk_usd) spread over the stop distance. --vol-size instead sizes so a
one-ATR move costs the risk budget.

Examples:
  papertrader open BTC-USD --side long --price 50000 --risk 25 --stop 49250
  papertrader open ETH-USD --side short --price 3000 --atr 40 --trail`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(func(e *env) error {
				return runOpen(cmd, e, args[0], f)
			})
		},
	}

	fl := c.Flags()
	fl.StringVar(&f.side, "side", "", "long or short (required)")
	fl.StringVar(&f.price, "price", "", "entry price (required)")
	fl.StringVar(&f.size, "size", "", "position size in units")
	fl.StringVar(&f.riskUSD, "risk", "", "dollar risk at the stop (default risk.risk_usd)")
	fl.BoolVar(&f.volSize, "vol-size", false, "size so one ATR costs the risk budget")
	fl.StringVar(&f.stop, "stop", "", "stop price")
	fl.StringVar(&f.atr, "atr", "", "ATR at entry; enables ATR stops, targets and trailing")
	fl.StringVar(&f.stopATR, "stop-atr", "", "stop distance in ATRs (default risk.stop_atr)")
	fl.StringVar(&f.tp, "tp", "", "take profit price")
	fl.StringVar(&f.tpATR, "tp-atr", "", "take profit distance in ATRs (default risk.tp_atr)")
	fl.BoolVar(&f.trail, "trail", false, "enable breakeven and trailing stops")
	fl.StringVar(&f.beATR, "be-atr", "", "move stop to entry after this many ATRs")
	fl.StringVar(&f.startATR, "trail-start-atr", "", "start trailing after this many ATRs")
	fl.StringVar(&f.distATR, "trail-distance-atr", "", "trail this many ATRs behind the best price")
	fl.StringVar(&f.strategy, "strategy", "", "strategy tag recorded with the trade")
	fl.StringVar(&f.notes, "notes", "", "free-form notes")
	fl.StringVar(&f.at, "at", "", "open time, RFC3339 (default now)")
	fl.BoolVar(&f.force, "force", false, "open even when risk limits are exceeded")
	_ = c.MarkFlagRequired("side")
	_ = c.MarkFlagRequired("price")
	return c
}

func runOpen(cmd *cobra.Command, e *env, instrument string, f *openFlags) error {
	req, err := f.request(e)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := checkPolicy(cmd, e, instrument, req, f.force); err != nil {
		return err
	}

	pos, err := e.book.Open(ctx, instrument, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "opened %s %s size=%s entry=%s stop=%s tp=%s id=%s\n",
		pos.Direction, pos.Instrument, pos.Size, pos.EntryPrice, pos.StopPrice, orNone(pos.TakeProfit), pos.TradeID)
	return printStatus(cmd, e, instrument)
}

// request resolves flags and config defaults into a ledger request.
func (f *openFlags) request(e *env) (ledger.OpenRequest, error) {
	cfg := e.cfg
	var req ledger.OpenRequest

	dir, err := market.ParseDirection(f.side)
	if err != nil {
		return req, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	entry, err := parseDecimal("price", f.price)
	if err != nil {
		return req, err
	}
	atr, err := optionalDecimal("atr", f.atr)
	if err != nil {
		return req, err
	}
	at, err := parseAt(f.at)
	if err != nil {
		return req, err
	}
	req = ledger.OpenRequest{
		Direction:  dir,
		EntryPrice: entry,
		ATR:        atr,
		Strategy:   f.strategy,
		Notes:      f.notes,
		At:         at,
	}

	switch {
	case f.stop != "":
		if req.StopPrice, err = parseDecimal("stop", f.stop); err != nil {
			return req, err
		}
	case atr != nil:
		mult, err := multiple("stop-atr", f.stopATR, cfg.Risk.StopATR)
		if err != nil {
			return req, err
		}
		if req.StopPrice, err = risk.SuggestStop(entry, *atr, dir, mult); err != nil {
			return req, err
		}
	default:
		return req, fmt.Errorf("%w: --stop or --atr is required", errs.ErrInvalidStopPlacement)
	}

	switch {
	case f.tp != "":
		if req.TakeProfit, err = optionalDecimal("tp", f.tp); err != nil {
			return req, err
		}
	case atr != nil:
		mult, err := multiple("tp-atr", f.tpATR, cfg.Risk.TakeATR)
		if err != nil {
			return req, err
		}
		if mult.IsPositive() {
			tp, err := risk.SuggestTarget(entry, *atr, dir, mult)
			if err != nil {
				return req, err
			}
			req.TakeProfit = &tp
		}
	}

	if err := f.sizing(e, &req); err != nil {
		return req, err
	}

	if f.trail {
		tc := cfg.Trailing.Ledger()
		if tc.MoveToBreakevenATR, err = multiple("be-atr", f.beATR, cfg.Trailing.MoveToBreakevenATR); err != nil {
			return req, err
		}
		if tc.TrailStartATR, err = multiple("trail-start-atr", f.startATR, cfg.Trailing.TrailStartATR); err != nil {
			return req, err
		}
		if tc.TrailDistanceATR, err = multiple("trail-distance-atr", f.distATR, cfg.Trailing.TrailDistanceATR); err != nil {
			return req, err
		}
		req.Trailing = &tc
	}
	return req, nil
}

func (f *openFlags) sizing(e *env, req *ledger.OpenRequest) error {
	var err error
	if f.size != "" {
		if f.riskUSD != "" || f.volSize {
			return fmt.Errorf("%w: --size cannot be combined with --risk or --vol-size", errs.ErrInvalidSize)
		}
		req.Size, err = parseDecimal("size", f.size)
		return err
	}

	budget := decimal.NewFromFloat(e.cfg.Risk.RiskUSD)
	if f.riskUSD != "" {
		if budget, err = parseDecimal("risk", f.riskUSD); err != nil {
			return err
		}
	}

	if f.volSize {
		if req.ATR == nil {
			return fmt.Errorf("%w: --vol-size needs --atr", errs.ErrInvalidSize)
		}
		req.Size, err = risk.SizeFromATR(budget, req.EntryPrice, *req.ATR, decimal.NewFromFloat(e.cfg.Risk.MinVolFrac))
		if err != nil {
			return err
		}
		req.Size = truncate(req.Size, e.cfg.Risk.SizePlaces)
		return nil
	}

	if places := e.cfg.Risk.SizePlaces; places > 0 {
		size, err := risk.SizeForRisk(req.Direction, budget, req.EntryPrice, req.StopPrice)
		if err != nil {
			return err
		}
		req.Size = truncate(size, places)
		return nil
	}
	req.RiskUSD = budget
	return nil
}

func truncate(d decimal.Decimal, places int32) decimal.Decimal {
	if places <= 0 {
		return d
	}
	return d.Truncate(places)
}

// multiple reads an ATR multiple flag, falling back to the config value.
func multiple(name, flag string, def float64) (decimal.Decimal, error) {
	if flag == "" {
		return decimal.NewFromFloat(def), nil
	}
	return parseDecimal(name, flag)
}

// checkPolicy applies the configured pre-trade limits. It is skipped when
// no limit is set or --force is given.
func checkPolicy(cmd *cobra.Command, e *env, instrument string, req ledger.OpenRequest, force bool) error {
	policy := e.cfg.Risk.Policy()
	if force || (!policy.MaxRiskUSD.IsPositive() && !policy.MaxRiskPct.IsPositive() && !policy.MinRR.IsPositive()) {
		return nil
	}

	size := req.Size
	if !size.IsPositive() {
		var err error
		if size, err = risk.SizeForRisk(req.Direction, req.RiskUSD, req.EntryPrice, req.StopPrice); err != nil {
			return err
		}
	}

	s, err := e.book.Summary(cmd.Context(), instrument)
	if err != nil {
		return err
	}
	equity := e.cfg.Account.Report().StartingBalance.Add(s.RealizedPnL)

	d := risk.Evaluate(policy, risk.TradeIntent{
		Instrument: instrument,
		Direction:  req.Direction,
		Size:       size,
		Entry:      req.EntryPrice,
		Stop:       req.StopPrice,
		TakeProfit: req.TakeProfit,
	}, equity)
	if d.Allowed {
		return nil
	}
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Code + ": " + v.Msg
	}
	return fmt.Errorf("%w: risk limits: %s", errs.ErrValidation, strings.Join(msgs, "; "))
}

func orNone(d *decimal.Decimal) string {
	if d == nil {
		return "none"
	}
	return d.String()
}

// printStatus writes the one-line summary for instrument.
func printStatus(cmd *cobra.Command, e *env, instrument string) error {
	s, err := e.book.Summary(cmd.Context(), instrument)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Text(s, e.cfg.Account.Report()))
	return nil
}

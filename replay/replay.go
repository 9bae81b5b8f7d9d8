// Package replay drives a ledger book from a recorded price file, optionally
// with scripted open, adjust and close events between ticks.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

// Target is the part of ledger.Book a replay needs.
type Target interface {
	Open(ctx context.Context, instrument string, req ledger.OpenRequest) (ledger.Position, error)
	OnPrice(ctx context.Context, instrument string, price decimal.Decimal, at time.Time) (ledger.Outcome, error)
	Adjust(ctx context.Context, instrument string, req ledger.AdjustRequest) (ledger.Position, error)
	Close(ctx context.Context, instrument string, exitPrice decimal.Decimal, at time.Time) (ledger.ClosedTrade, error)
}

// Options controls how replay behaves.
type Options struct {
	// If true: process the tick first, then the row's event, so a CLOSE
	// event sees the position after the tick's stop and target checks.
	TickThenEvent bool
}

// Stats counts what a replay did.
type Stats struct {
	Rows      int
	Ticks     int
	Stale     int
	StopMoves int
	Opened    int
	Closed    int
	Trades    []ledger.ClosedTrade
}

// File replays the CSV at path. See Read for the format.
func File(ctx context.Context, path string, target Target, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	return Read(ctx, f, target, opts)
}

// Read replays ticks from CSV and applies optional scripted events.
//
// CSV formats supported:
//
//  1. Basic ticks:
//     time,instrument,price
//
//  2. Ticks + events:
//     time,instrument,price,event,arg1,arg2,arg3,arg4
//
// Events (case-insensitive), priced and timed by their row:
//
//	OPEN:        arg1=side  arg2=size      arg3=stop  arg4=takeProfit (optional)
//	OPEN_RISK:   arg1=side  arg2=riskUSD   arg3=stop  arg4=takeProfit (optional)
//	ADJUST:      arg1=stop (optional)      arg2=takeProfit (optional)
//	CLOSE:       no args; skipped when the instrument is already flat
//
// The first failing row stops the replay; Stats covers the rows before it.
func Read(ctx context.Context, r io.Reader, target Target, opts Options) (Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var st Stats
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if err := handleRow(ctx, target, row, opts, &st); err != nil {
			return st, fmt.Errorf("line %d: %w", line, err)
		}
		st.Rows++
	}
}

type rowEvent struct {
	name string
	args []string
}

func handleRow(ctx context.Context, target Target, row []string, opts Options, st *Stats) error {
	// Minimum tick columns: time,instrument,price
	if len(row) < 3 {
		return fmt.Errorf("%w: need at least 3 cols time,instrument,price: %v", errs.ErrValidation, row)
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	t, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return fmt.Errorf("%w: bad time %q", errs.ErrValidation, row[0])
	}
	inst := row[1]
	if inst == "" {
		return fmt.Errorf("%w: instrument is empty", errs.ErrValidation)
	}
	price, err := parseDecimal("price", row[2])
	if err != nil {
		return err
	}

	var ev rowEvent
	if len(row) >= 4 {
		ev.name = strings.ToUpper(row[3])
		ev.args = row[4:]
	}

	if opts.TickThenEvent {
		if err := tick(ctx, target, inst, price, t, st); err != nil {
			return err
		}
		return handleEvent(ctx, target, inst, price, t, ev, st)
	}

	// Event first, then tick
	if err := handleEvent(ctx, target, inst, price, t, ev, st); err != nil {
		return err
	}
	return tick(ctx, target, inst, price, t, st)
}

func tick(ctx context.Context, target Target, inst string, price decimal.Decimal, t time.Time, st *Stats) error {
	out, err := target.OnPrice(ctx, inst, price, t)
	if err != nil {
		return err
	}
	st.Ticks++
	if out.Stale {
		st.Stale++
	}
	if out.StopMovedFrom != nil {
		st.StopMoves++
	}
	if out.Closed != nil {
		st.Closed++
		st.Trades = append(st.Trades, *out.Closed)
	}
	return nil
}

func handleEvent(ctx context.Context, target Target, inst string, price decimal.Decimal, t time.Time, ev rowEvent, st *Stats) error {
	switch ev.name {
	case "":
		return nil

	case "OPEN", "OPEN_RISK":
		// OPEN,long,0.5,49000,52000
		req, err := parseOpen(ev, price, t)
		if err != nil {
			return fmt.Errorf("%s: %w", ev.name, err)
		}
		if _, err := target.Open(ctx, inst, req); err != nil {
			return err
		}
		st.Opened++
		return nil

	case "ADJUST":
		// ADJUST,50000,
		req := ledger.AdjustRequest{At: t}
		var err error
		if req.Stop, err = optionalArg(ev.args, 0, "stop"); err != nil {
			return fmt.Errorf("ADJUST: %w", err)
		}
		if req.TakeProfit, err = optionalArg(ev.args, 1, "takeProfit"); err != nil {
			return fmt.Errorf("ADJUST: %w", err)
		}
		_, err = target.Adjust(ctx, inst, req)
		return err

	case "CLOSE":
		trade, err := target.Close(ctx, inst, price, t)
		if errors.Is(err, errs.ErrNoOpenPosition) {
			return nil
		}
		if err != nil {
			return err
		}
		st.Closed++
		st.Trades = append(st.Trades, trade)
		return nil

	default:
		return fmt.Errorf("%w: unknown event %q", errs.ErrValidation, ev.name)
	}
}

func parseOpen(ev rowEvent, price decimal.Decimal, t time.Time) (ledger.OpenRequest, error) {
	if len(ev.args) < 3 {
		return ledger.OpenRequest{}, fmt.Errorf("%w: need arg1=side arg2=amount arg3=stop", errs.ErrValidation)
	}
	dir, err := market.ParseDirection(ev.args[0])
	if err != nil {
		return ledger.OpenRequest{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	amount, err := parseDecimal("amount", ev.args[1])
	if err != nil {
		return ledger.OpenRequest{}, err
	}
	stop, err := parseDecimal("stop", ev.args[2])
	if err != nil {
		return ledger.OpenRequest{}, err
	}
	tp, err := optionalArg(ev.args, 3, "takeProfit")
	if err != nil {
		return ledger.OpenRequest{}, err
	}

	req := ledger.OpenRequest{
		Direction:  dir,
		EntryPrice: price,
		StopPrice:  stop,
		TakeProfit: tp,
		Strategy:   "replay",
		At:         t,
	}
	if ev.name == "OPEN_RISK" {
		req.RiskUSD = amount
	} else {
		req.Size = amount
	}
	return req, nil
}

func optionalArg(args []string, i int, name string) (*decimal.Decimal, error) {
	if i >= len(args) || args[i] == "" {
		return nil, nil
	}
	d, err := parseDecimal(name, args[i])
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad %s %q", errs.ErrValidation, name, s)
	}
	return d, nil
}

// Package ledger is the per-instrument trade lifecycle: at most one open
// position, mark-to-market with breakeven and trailing stops, and an
// append-only list of closed trades.
//
// Every transition is written ahead to a Store before it becomes visible, and
// the same apply step is used for live commands and for replay, so a ledger
// rebuilt from its log is identical to the one that wrote it.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/id"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/risk"
	"github.com/shopspring/decimal"
)

// Ledger is the state of one instrument. It is not safe for concurrent use;
// Book serializes access per instrument.
type Ledger struct {
	instrument string
	state      State
	closed     []ClosedTrade

	// mark is the last price seen; lastTick is the time of the last
	// mark-to-market tick and gates stale re-deliveries.
	mark     decimal.Decimal
	lastTick time.Time
	seq      int64

	store Store
	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

// WithClock sets the time used when a command carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDFunc sets the generator for trade and event ids.
func WithIDFunc(f func() string) Option {
	return func(l *Ledger) { l.newID = f }
}

// New returns a flat ledger. A nil store keeps events in memory only.
func New(instrument string, store Store, opts ...Option) *Ledger {
	if store == nil {
		store = nopStore{}
	}
	l := &Ledger{
		instrument: instrument,
		state:      Flat{},
		store:      store,
		now:        time.Now,
	}
	// Ids carry the ledger clock so they sort with simulated time.
	l.newID = func() string { return id.NewAt(l.now()) }
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore loads the instrument's log from store and replays it.
func Restore(ctx context.Context, instrument string, store Store, opts ...Option) (*Ledger, error) {
	l := New(instrument, store, opts...)
	events, err := l.store.Load(ctx, instrument)
	if err != nil {
		return nil, errs.Persistence("load "+instrument, err)
	}
	if err := l.Replay(events); err != nil {
		return nil, err
	}
	return l, nil
}

// Replay applies events in order. Either all of them apply or the ledger is
// left unchanged.
func (l *Ledger) Replay(events []Event) error {
	next := l.clone()
	for _, ev := range events {
		if err := next.apply(ev); err != nil {
			return err
		}
	}
	*l = *next
	return nil
}

func (l *Ledger) Instrument() string { return l.instrument }

// Seq is the sequence number of the last applied event.
func (l *Ledger) Seq() int64 { return l.seq }

func (l *Ledger) State() State { return l.state }

// Position returns the open position, if any.
func (l *Ledger) Position() (Position, bool) {
	if o, ok := l.state.(Open); ok {
		return o.Position, true
	}
	return Position{}, false
}

// Trades returns the closed trades, oldest first.
func (l *Ledger) Trades() []ClosedTrade {
	out := make([]ClosedTrade, len(l.closed))
	copy(out, l.closed)
	return out
}

// OpenRequest describes a new position. Exactly one of Size and RiskUSD must
// be set; with RiskUSD the size is derived from the stop distance.
type OpenRequest struct {
	Direction  market.Direction
	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	RiskUSD    decimal.Decimal
	StopPrice  decimal.Decimal
	TakeProfit *decimal.Decimal

	// Trailing needs ATR, the volatility captured at entry.
	Trailing *TrailingConfig
	ATR      *decimal.Decimal

	Strategy string
	Notes    string
	At       time.Time
}

// Open creates the instrument's position. It fails with
// errs.ErrPositionAlreadyOpen unless the ledger is flat.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (Position, error) {
	if _, open := l.state.(Open); open {
		return Position{}, fmt.Errorf("%w: %s", errs.ErrPositionAlreadyOpen, l.instrument)
	}
	if err := risk.ValidateStop(req.Direction, req.EntryPrice, req.StopPrice); err != nil {
		return Position{}, err
	}

	size, err := resolveSize(req)
	if err != nil {
		return Position{}, err
	}
	if req.TakeProfit != nil {
		if err := validateTarget(req.Direction, req.EntryPrice, *req.TakeProfit); err != nil {
			return Position{}, err
		}
	}
	if req.ATR != nil && !req.ATR.IsPositive() {
		return Position{}, fmt.Errorf("%w: atr %s must be positive", errs.ErrValidation, req.ATR)
	}
	if req.Trailing != nil {
		if req.ATR == nil {
			return Position{}, fmt.Errorf("%w: trailing requires the entry ATR", errs.ErrInvalidTrailing)
		}
		if err := req.Trailing.Validate(); err != nil {
			return Position{}, err
		}
	}

	at := l.at(req.At)
	pos := Position{
		TradeID:     l.newID(),
		Instrument:  l.instrument,
		Direction:   req.Direction,
		EntryPrice:  req.EntryPrice,
		Size:        size,
		InitialStop: req.StopPrice,
		StopPrice:   req.StopPrice,
		TakeProfit:  copyDec(req.TakeProfit),
		ATR:         copyDec(req.ATR),
		HighWater:   req.EntryPrice,
		LowWater:    req.EntryPrice,
		OpenedAt:    at,
		Strategy:    req.Strategy,
		Notes:       req.Notes,
	}
	if req.Trailing != nil {
		cfg := *req.Trailing
		pos.Trailing = &cfg
	}

	price := req.EntryPrice
	if err := l.commit(ctx, Event{Kind: EventOpened, At: at, Price: &price, Position: &pos}); err != nil {
		return Position{}, err
	}
	return pos, nil
}

func resolveSize(req OpenRequest) (decimal.Decimal, error) {
	hasSize, hasRisk := !req.Size.IsZero(), !req.RiskUSD.IsZero()
	switch {
	case hasSize && hasRisk:
		return decimal.Zero, fmt.Errorf("%w: give a size or a risk amount, not both", errs.ErrInvalidSize)
	case hasRisk:
		return risk.SizeForRisk(req.Direction, req.RiskUSD, req.EntryPrice, req.StopPrice)
	case !req.Size.IsPositive():
		return decimal.Zero, fmt.Errorf("%w: size %s must be positive", errs.ErrInvalidSize, req.Size)
	}
	return req.Size, nil
}

func validateTarget(dir market.Direction, ref, tp decimal.Decimal) error {
	if tp.Sub(ref).Mul(dir.Sign()).IsPositive() {
		return nil
	}
	return fmt.Errorf("%w: %s take profit %s is not beyond %s", errs.ErrInvalidTarget, dir, tp, ref)
}

// Outcome reports what a tick did to the ledger.
type Outcome struct {
	// Stale is set when the tick was not newer than the last one and was
	// ignored.
	Stale bool

	// StopMovedFrom holds the previous stop when breakeven or trailing
	// tightened it.
	StopMovedFrom *decimal.Decimal

	Closed   *ClosedTrade
	Position *Position
}

// OnPrice marks the position to market. In order it extends the water marks,
// applies the breakeven and trailing steps, then closes the position if the
// stop or the take profit was reached. A flat ledger ignores ticks.
func (l *Ledger) OnPrice(ctx context.Context, price decimal.Decimal, at time.Time) (Outcome, error) {
	if !price.IsPositive() {
		return Outcome{}, fmt.Errorf("%w: tick %s must be positive", errs.ErrInvalidPrice, price)
	}
	open, ok := l.state.(Open)
	if !ok {
		return Outcome{}, nil
	}
	at = l.at(at)
	if !l.lastTick.IsZero() && !at.After(l.lastTick) {
		return Outcome{Stale: true}, nil
	}

	prev := open.Position
	next := prev
	if price.GreaterThan(next.HighWater) {
		next.HighWater = price
	}
	if price.LessThan(next.LowWater) {
		next.LowWater = price
	}
	next.StopPrice = trailStop(next)

	var out Outcome
	if !next.StopPrice.Equal(prev.StopPrice) {
		from := prev.StopPrice
		out.StopMovedFrom = &from
	}

	if fill, reason, hit := exitFill(next, price); hit {
		trade := closeTrade(next, fill, at, reason)
		if err := l.commit(ctx, Event{Kind: EventClosed, At: at, Price: &price, Position: &next, Trade: &trade}); err != nil {
			return Outcome{}, err
		}
		out.Closed = &trade
		return out, nil
	}

	// Every accepted tick is recorded. Restore rebuilds mark and lastTick
	// from it.
	if err := l.commit(ctx, Event{Kind: EventMarked, At: at, Price: &price, Position: &next}); err != nil {
		return Outcome{}, err
	}
	out.Position = &next
	return out, nil
}

// trailStop returns the stop after the breakeven and trailing steps. The
// excursion is measured at the favorable water mark in multiples of the ATR
// fixed at entry, and the stop never loosens.
func trailStop(p Position) decimal.Decimal {
	stop := p.StopPrice
	if p.Trailing == nil || p.ATR == nil {
		return stop
	}
	cfg, atr := *p.Trailing, *p.ATR
	best := p.BestPrice()
	excursion := p.favorable(best)

	if cfg.MoveToBreakevenATR.IsPositive() && excursion.GreaterThanOrEqual(cfg.MoveToBreakevenATR.Mul(atr)) {
		if p.tighter(p.EntryPrice, stop) {
			stop = p.EntryPrice
		}
	}
	if cfg.TrailStartATR.IsPositive() && excursion.GreaterThanOrEqual(cfg.TrailStartATR.Mul(atr)) {
		candidate := best.Sub(cfg.TrailDistanceATR.Mul(atr).Mul(p.Direction.Sign()))
		if p.tighter(candidate, stop) {
			stop = candidate
		}
	}
	return stop
}

// exitFill decides whether price closes p. The stop is checked first. A tick
// exactly at the stop fills at the stop. Any tick beyond it is a gap and
// fills at the tick price. A take profit fills at its level.
func exitFill(p Position, price decimal.Decimal) (decimal.Decimal, ExitReason, bool) {
	if p.stopHit(price) {
		if price.Equal(p.StopPrice) {
			return p.StopPrice, ExitStopHit, true
		}
		return price, ExitStopHit, true
	}
	if p.targetHit(price) {
		return *p.TakeProfit, ExitTakeProfitHit, true
	}
	return decimal.Zero, "", false
}

// AdjustRequest overrides the stop and/or take profit of the open position.
type AdjustRequest struct {
	Stop       *decimal.Decimal
	TakeProfit *decimal.Decimal
	At         time.Time
}

// Adjust applies a manual stop or target change. A stop less favorable than
// the current one fails with errs.ErrStopWouldLoosen; an equal stop is
// accepted.
func (l *Ledger) Adjust(ctx context.Context, req AdjustRequest) (Position, error) {
	open, ok := l.state.(Open)
	if !ok {
		return Position{}, fmt.Errorf("%w: %s is flat", errs.ErrNoOpenPosition, l.instrument)
	}
	if req.Stop == nil && req.TakeProfit == nil {
		return Position{}, fmt.Errorf("%w: nothing to adjust", errs.ErrValidation)
	}

	next := open.Position
	if req.Stop != nil {
		stop := *req.Stop
		if next.tighter(next.StopPrice, stop) {
			return Position{}, fmt.Errorf("%w: %s stop %s is behind %s", errs.ErrStopWouldLoosen, next.Direction, stop, next.StopPrice)
		}
		// The stop must stay on the loss side of the market.
		if err := risk.ValidateStop(next.Direction, l.mark, stop); err != nil {
			return Position{}, err
		}
		next.StopPrice = stop
	}
	if req.TakeProfit != nil {
		if err := validateTarget(next.Direction, l.mark, *req.TakeProfit); err != nil {
			return Position{}, err
		}
		next.TakeProfit = copyDec(req.TakeProfit)
	}

	if err := l.commit(ctx, Event{Kind: EventAdjusted, At: l.at(req.At), Position: &next}); err != nil {
		return Position{}, err
	}
	return next, nil
}

// Close exits the open position at exitPrice.
func (l *Ledger) Close(ctx context.Context, exitPrice decimal.Decimal, at time.Time) (ClosedTrade, error) {
	open, ok := l.state.(Open)
	if !ok {
		return ClosedTrade{}, fmt.Errorf("%w: %s is flat", errs.ErrNoOpenPosition, l.instrument)
	}
	if !exitPrice.IsPositive() {
		return ClosedTrade{}, fmt.Errorf("%w: exit %s must be positive", errs.ErrInvalidPrice, exitPrice)
	}
	at = l.at(at)
	pos := open.Position
	trade := closeTrade(pos, exitPrice, at, ExitManual)
	if err := l.commit(ctx, Event{Kind: EventClosed, At: at, Price: &exitPrice, Position: &pos, Trade: &trade}); err != nil {
		return ClosedTrade{}, err
	}
	return trade, nil
}

// commit writes ev ahead and only then makes it visible. The event is checked
// against a copy first, so a rejected or unrecorded event leaves the ledger
// untouched.
func (l *Ledger) commit(ctx context.Context, ev Event) error {
	ev.Instrument = l.instrument
	ev.Seq = l.seq + 1
	ev.ID = l.newID()

	next := l.clone()
	if err := next.apply(ev); err != nil {
		return err
	}
	if err := l.store.Append(ctx, ev); err != nil {
		return errs.Persistence("append "+string(ev.Kind), err)
	}
	*l = *next
	return nil
}

// apply is the only place state changes.
func (l *Ledger) apply(ev Event) error {
	if ev.Instrument != l.instrument {
		return corrupt(ev, "event for another instrument (want %s)", l.instrument)
	}
	if ev.Seq != l.seq+1 {
		return corrupt(ev, "expected seq %d", l.seq+1)
	}

	open, isOpen := l.state.(Open)
	switch ev.Kind {
	case EventOpened:
		if isOpen {
			return corrupt(ev, "position %s is still open", open.Position.TradeID)
		}
		if ev.Position == nil {
			return corrupt(ev, "missing position")
		}
		l.state = Open{Position: *ev.Position}
		l.mark = ev.Position.EntryPrice

	case EventMarked, EventAdjusted:
		if err := sameTrade(ev, open, isOpen); err != nil {
			return err
		}
		l.state = Open{Position: *ev.Position}
		if ev.Kind == EventMarked {
			if ev.Price == nil {
				return corrupt(ev, "missing price")
			}
			l.mark = *ev.Price
			l.lastTick = ev.At
		}

	case EventClosed:
		if err := sameTrade(ev, open, isOpen); err != nil {
			return err
		}
		if ev.Trade == nil || ev.Trade.TradeID != open.Position.TradeID {
			return corrupt(ev, "missing or mismatched trade")
		}
		l.closed = append(l.closed, *ev.Trade)
		l.state = Flat{}
		l.mark = ev.Trade.ExitPrice
		if ev.Trade.ExitReason != ExitManual {
			l.lastTick = ev.At
		}

	default:
		return corrupt(ev, "unknown kind")
	}

	l.seq = ev.Seq
	return nil
}

func sameTrade(ev Event, open Open, isOpen bool) error {
	if !isOpen {
		return corrupt(ev, "no open position")
	}
	if ev.Position == nil || ev.Position.TradeID != open.Position.TradeID {
		return corrupt(ev, "missing or mismatched position")
	}
	return nil
}

func (l *Ledger) clone() *Ledger {
	c := *l
	c.closed = make([]ClosedTrade, len(l.closed), len(l.closed)+1)
	copy(c.closed, l.closed)
	return &c
}

func (l *Ledger) at(t time.Time) time.Time {
	if t.IsZero() {
		return l.now().UTC()
	}
	return t
}

func copyDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

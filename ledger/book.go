package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Lister is implemented by stores that can enumerate the instruments they
// hold events for.
type Lister interface {
	Instruments(ctx context.Context) ([]string, error)
}

// Book holds one Ledger per instrument. Commands on the same instrument run
// one at a time; different instruments proceed in parallel.
type Book struct {
	mu    sync.Mutex
	slots map[string]*slot

	store Store
	log   *zap.Logger
	opts  []Option
}

type slot struct {
	mu     sync.Mutex
	ledger *Ledger
}

// NewBook returns a book backed by store. Instruments are rehydrated from the
// store the first time they are used.
func NewBook(store Store, log *zap.Logger, opts ...Option) *Book {
	if store == nil {
		store = nopStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{
		slots: make(map[string]*slot),
		store: store,
		log:   log,
		opts:  opts,
	}
}

func (b *Book) slot(instrument string) *slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[instrument]
	if !ok {
		s = &slot{}
		b.slots[instrument] = s
	}
	return s
}

// with runs fn holding the instrument's lock, loading the ledger first if
// needed.
func (b *Book) with(ctx context.Context, instrument string, fn func(*Ledger) error) error {
	s := b.slot(instrument)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		l, err := Restore(ctx, instrument, b.store, b.opts...)
		if err != nil {
			b.log.Error("rehydrate failed", zap.String("instrument", instrument), zap.Error(err))
			return err
		}
		if l.Seq() > 0 {
			b.log.Debug("rehydrated", zap.String("instrument", instrument), zap.Int64("seq", l.Seq()))
		}
		s.ledger = l
	}
	return fn(s.ledger)
}

func (b *Book) rejected(op, instrument string, err error) {
	if errs.KindOf(err) == errs.KindPersistence {
		b.log.Error(op+" not recorded", zap.String("instrument", instrument), zap.Error(err))
		return
	}
	b.log.Warn(op+" rejected", zap.String("instrument", instrument),
		zap.String("kind", string(errs.KindOf(err))), zap.Error(err))
}

func (b *Book) Open(ctx context.Context, instrument string, req OpenRequest) (Position, error) {
	var pos Position
	err := b.with(ctx, instrument, func(l *Ledger) error {
		var err error
		pos, err = l.Open(ctx, req)
		return err
	})
	if err != nil {
		b.rejected("open", instrument, err)
		return Position{}, err
	}
	b.log.Info("position opened",
		zap.String("instrument", instrument),
		zap.String("trade_id", pos.TradeID),
		zap.Stringer("direction", pos.Direction),
		zap.Stringer("entry", pos.EntryPrice),
		zap.Stringer("size", pos.Size),
		zap.Stringer("stop", pos.StopPrice))
	return pos, nil
}

func (b *Book) OnPrice(ctx context.Context, instrument string, price decimal.Decimal, at time.Time) (Outcome, error) {
	var out Outcome
	err := b.with(ctx, instrument, func(l *Ledger) error {
		var err error
		out, err = l.OnPrice(ctx, price, at)
		return err
	})
	if err != nil {
		b.rejected("tick", instrument, err)
		return Outcome{}, err
	}
	switch {
	case out.Stale:
		b.log.Debug("stale tick ignored", zap.String("instrument", instrument), zap.Time("at", at))
	case out.Closed != nil:
		b.log.Info("position closed",
			zap.String("instrument", instrument),
			zap.String("trade_id", out.Closed.TradeID),
			zap.String("reason", string(out.Closed.ExitReason)),
			zap.Stringer("exit", out.Closed.ExitPrice),
			zap.Stringer("pnl", out.Closed.RealizedPnL))
	case out.StopMovedFrom != nil:
		b.log.Info("stop moved",
			zap.String("instrument", instrument),
			zap.Stringer("from", *out.StopMovedFrom),
			zap.Stringer("to", out.Position.StopPrice))
	}
	return out, nil
}

func (b *Book) Adjust(ctx context.Context, instrument string, req AdjustRequest) (Position, error) {
	var pos Position
	err := b.with(ctx, instrument, func(l *Ledger) error {
		var err error
		pos, err = l.Adjust(ctx, req)
		return err
	})
	if err != nil {
		b.rejected("adjust", instrument, err)
		return Position{}, err
	}
	b.log.Info("position adjusted",
		zap.String("instrument", instrument),
		zap.Stringer("stop", pos.StopPrice))
	return pos, nil
}

func (b *Book) Close(ctx context.Context, instrument string, exitPrice decimal.Decimal, at time.Time) (ClosedTrade, error) {
	var trade ClosedTrade
	err := b.with(ctx, instrument, func(l *Ledger) error {
		var err error
		trade, err = l.Close(ctx, exitPrice, at)
		return err
	})
	if err != nil {
		b.rejected("close", instrument, err)
		return ClosedTrade{}, err
	}
	b.log.Info("position closed",
		zap.String("instrument", instrument),
		zap.String("trade_id", trade.TradeID),
		zap.String("reason", string(trade.ExitReason)),
		zap.Stringer("exit", trade.ExitPrice),
		zap.Stringer("pnl", trade.RealizedPnL))
	return trade, nil
}

func (b *Book) Summary(ctx context.Context, instrument string) (Summary, error) {
	var s Summary
	err := b.with(ctx, instrument, func(l *Ledger) error {
		s = l.Summary()
		return nil
	})
	return s, err
}

func (b *Book) Trades(ctx context.Context, instrument string) ([]ClosedTrade, error) {
	var trades []ClosedTrade
	err := b.with(ctx, instrument, func(l *Ledger) error {
		trades = l.Trades()
		return nil
	})
	return trades, err
}

// Instruments lists every instrument known to the book or its store, sorted.
func (b *Book) Instruments(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	if lister, ok := b.store.(Lister); ok {
		names, err := lister.Instruments(ctx)
		if err != nil {
			return nil, errs.Persistence("list instruments", err)
		}
		for _, n := range names {
			seen[n] = true
		}
	}
	b.mu.Lock()
	slots := make(map[string]*slot, len(b.slots))
	for n, s := range b.slots {
		slots[n] = s
	}
	b.mu.Unlock()
	for n, s := range slots {
		s.mu.Lock()
		if s.ledger != nil && s.ledger.Seq() > 0 {
			seen[n] = true
		}
		s.mu.Unlock()
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Summaries returns one summary per known instrument.
func (b *Book) Summaries(ctx context.Context) ([]Summary, error) {
	names, err := b.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		s, err := b.Summary(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

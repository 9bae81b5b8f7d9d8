package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
)

// Memory keeps the log in process. It enforces the same per-instrument
// sequence rule as the SQLite primary key.
type Memory struct {
	mu     sync.Mutex
	events map[string][]ledger.Event
	trades []ledger.ClosedTrade
	fail   error
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string][]ledger.Event)}
}

// FailWith makes every later Append and Load return err; nil clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *Memory) Append(_ context.Context, ev ledger.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	log := m.events[ev.Instrument]
	if want := int64(len(log)) + 1; ev.Seq != want {
		return fmt.Errorf("%s: seq %d out of order, want %d", ev.Instrument, ev.Seq, want)
	}
	m.events[ev.Instrument] = append(log, ev)
	if ev.Kind == ledger.EventClosed && ev.Trade != nil {
		m.trades = append(m.trades, *ev.Trade)
	}
	return nil
}

func (m *Memory) Load(_ context.Context, instrument string) ([]ledger.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]ledger.Event, len(m.events[instrument]))
	copy(out, m.events[instrument])
	return out, nil
}

func (m *Memory) Instruments(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for name := range m.events {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) GetTrade(_ context.Context, tradeID string) (ledger.ClosedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.TradeID == tradeID {
			return t, nil
		}
	}
	return ledger.ClosedTrade{}, fmt.Errorf("%w: %q", ErrTradeNotFound, tradeID)
}

func (m *Memory) ListTradesClosedBetween(_ context.Context, start, end time.Time) ([]ledger.ClosedTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.ClosedTrade
	for _, t := range m.trades {
		if !t.ClosedAt.Before(start) && t.ClosedAt.Before(end) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out, nil
}

func (m *Memory) Close() error { return nil }

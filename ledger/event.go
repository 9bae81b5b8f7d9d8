package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names a ledger transition.
type EventKind string

const (
	EventOpened   EventKind = "opened"
	EventMarked   EventKind = "marked"
	EventAdjusted EventKind = "adjusted"
	EventClosed   EventKind = "closed"
)

// Event is one durable ledger transition. It carries the complete position
// after the transition (or the closed trade), so replaying the log never
// depends on recomputation.
type Event struct {
	ID         string           `json:"id"`
	Seq        int64            `json:"seq"`
	Instrument string           `json:"instrument"`
	Kind       EventKind        `json:"kind"`
	At         time.Time        `json:"at"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Position   *Position        `json:"position,omitempty"`
	Trade      *ClosedTrade     `json:"trade,omitempty"`
}

// Store is the durable event log. Append must not return until the event is
// recorded; Load returns an instrument's events in Seq order.
type Store interface {
	Append(ctx context.Context, ev Event) error
	Load(ctx context.Context, instrument string) ([]Event, error)
}

// ErrCorruptLog reports an event log that cannot be replayed.
var ErrCorruptLog = errors.New("corrupt event log")

func corrupt(ev Event, format string, args ...any) error {
	return fmt.Errorf("%w: %s seq %d (%s): %s", ErrCorruptLog, ev.Instrument, ev.Seq, ev.Kind, fmt.Sprintf(format, args...))
}

type nopStore struct{}

func (nopStore) Append(context.Context, Event) error { return nil }

func (nopStore) Load(context.Context, string) ([]Event, error) { return nil, nil }

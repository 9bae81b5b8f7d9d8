// Package journal is the durable side of the ledger: an append-only event
// log per instrument plus a table of closed trades for queries and exports.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
)

var ErrTradeNotFound = errors.New("trade not found")

// Journal is a ledger.Store that can also answer questions about history.
type Journal interface {
	ledger.Store
	ledger.Lister

	GetTrade(ctx context.Context, tradeID string) (ledger.ClosedTrade, error)
	ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]ledger.ClosedTrade, error)
	Close() error
}

const (
	TypeSQLite = "sqlite"
	TypeMemory = "memory"
)

// Open returns the journal named by kind. path is ignored for memory.
func Open(kind, path string) (Journal, error) {
	switch kind {
	case TypeSQLite, "":
		return NewSQLite(path)
	case TypeMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", kind)
	}
}

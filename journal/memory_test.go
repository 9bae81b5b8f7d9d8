package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

func TestMemoryReplayAndTrades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemory()
	live := runTrade(t, m)

	restored, err := ledger.Restore(ctx, "BTC-USD", m)
	require.NoError(t, err)
	assert.Equal(t, live.State(), restored.State())
	assert.Equal(t, live.Trades(), restored.Trades())
	assert.Equal(t, live.Summary(), restored.Summary())

	got, err := m.GetTrade(ctx, live.Trades()[0].TradeID)
	require.NoError(t, err)
	assert.Equal(t, live.Trades()[0], got)

	_, err = m.GetTrade(ctx, "missing")
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestMemoryEnforcesSequence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemory()
	err := m.Append(ctx, ledger.Event{Seq: 2, Instrument: "BTC-USD", Kind: ledger.EventOpened})
	assert.Error(t, err)

	events, err := m.Load(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryFailureInjection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemory()
	b := ledger.NewBook(m, nil)
	req := ledger.OpenRequest{Direction: market.Short, EntryPrice: d("2000"), Size: d("1"), StopPrice: d("2100"), At: t0}

	m.FailWith(errors.New("io timeout"))
	_, err := b.Open(ctx, "ETH-USD", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.True(t, errs.Retryable(err))

	m.FailWith(nil)
	_, err = b.Open(ctx, "ETH-USD", req)
	require.NoError(t, err, "a retried open succeeds once the store recovers")

	m.FailWith(errors.New("io timeout"))
	_, err = b.Close(ctx, "ETH-USD", d("1900"), t0.Add(time.Minute))
	assert.ErrorIs(t, err, errs.ErrPersistence)

	m.FailWith(nil)
	s, err := b.Summary(ctx, "ETH-USD")
	require.NoError(t, err)
	assert.True(t, s.HasPosition)
	assert.Zero(t, s.Trades)
}

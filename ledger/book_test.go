package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBookRehydratesFromStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore()

	first := NewBook(store, nil, testOpts()...)
	_, err := first.Open(ctx, "ETH-USD", OpenRequest{Direction: market.Long, EntryPrice: d("3000"), Size: d("1"), StopPrice: d("2900")})
	require.NoError(t, err)
	_, err = first.OnPrice(ctx, "ETH-USD", d("3100"), at(1))
	require.NoError(t, err)

	second := NewBook(store, nil)
	s, err := second.Summary(ctx, "ETH-USD")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, s.State)
	require.NotNil(t, s.Position)
	assert.True(t, s.Position.HighWater.Equal(d("3100")))
	assert.True(t, s.UnrealizedPnL.Equal(d("100")))

	// The restored book keeps rejecting a second open.
	_, err = second.Open(ctx, "ETH-USD", OpenRequest{Direction: market.Long, EntryPrice: d("3000"), Size: d("1"), StopPrice: d("2900")})
	assert.ErrorIs(t, err, errs.ErrPositionAlreadyOpen)

	// Stale gate survives the restart as well.
	out, err := second.OnPrice(ctx, "ETH-USD", d("2000"), at(1))
	require.NoError(t, err)
	assert.True(t, out.Stale)
}

func TestBookSummaries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := NewBook(newTestStore(), nil, testOpts()...)

	_, err := b.Open(ctx, "SOL-USD", OpenRequest{Direction: market.Short, EntryPrice: d("150"), Size: d("4"), StopPrice: d("160")})
	require.NoError(t, err)
	_, err = b.Open(ctx, "BTC-USD", OpenRequest{Direction: market.Long, EntryPrice: d("50000"), Size: d("0.1"), StopPrice: d("49000")})
	require.NoError(t, err)
	_, err = b.Close(ctx, "BTC-USD", d("50500"), at(1))
	require.NoError(t, err)

	// Looking at an unknown instrument does not make it known.
	flat, err := b.Summary(ctx, "DOGE-USD")
	require.NoError(t, err)
	assert.Nil(t, flat.Position)
	assert.False(t, flat.HasPosition)

	all, err := b.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTC-USD", all[0].Instrument)
	assert.Equal(t, StateFlat, all[0].State)
	assert.True(t, all[0].RealizedPnL.Equal(d("50")))
	assert.Equal(t, "SOL-USD", all[1].Instrument)
	assert.Equal(t, StateOpen, all[1].State)

	trades, err := b.Trades(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, ExitManual, trades[0].ExitReason)
}

func TestBookConcurrentInstruments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore()
	b := NewBook(store, nil)

	const instruments, ticks = 8, 40
	var wg sync.WaitGroup
	errc := make(chan error, instruments*(ticks+2)*2)

	for i := 0; i < instruments; i++ {
		name := fmt.Sprintf("COIN%d-USD", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Open(ctx, name, OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("50")}); err != nil {
				errc <- err
				return
			}
			// Two writers per instrument race on the same ledger.
			var inner sync.WaitGroup
			for w := 0; w < 2; w++ {
				inner.Add(1)
				go func() {
					defer inner.Done()
					for k := 1; k <= ticks; k++ {
						if _, err := b.OnPrice(ctx, name, d(fmt.Sprintf("%d", 100+k)), at(k)); err != nil {
							errc <- err
						}
					}
				}()
			}
			inner.Wait()
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Error(err)
	}

	all, err := b.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, instruments)
	for _, s := range all {
		require.NotNil(t, s.Position, s.Instrument)
		assert.True(t, s.Position.HighWater.Equal(d(fmt.Sprintf("%d", 100+ticks))), "%s high water %s", s.Instrument, s.Position.HighWater)

		// Every recorded event kept the sequence gap-free.
		events, err := store.Load(ctx, s.Instrument)
		require.NoError(t, err)
		for i, ev := range events {
			assert.Equal(t, int64(i+1), ev.Seq)
		}
	}
}

func TestBookLogsTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	store := newTestStore()
	b := NewBook(store, zap.New(core), testOpts()...)

	_, err := b.Open(ctx, "BTC-USD", OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90"),
		ATR: dp("5"), Trailing: &TrailingConfig{MoveToBreakevenATR: d("1")}})
	require.NoError(t, err)
	_, err = b.OnPrice(ctx, "BTC-USD", d("106"), at(1))
	require.NoError(t, err)
	_, err = b.Close(ctx, "BTC-USD", d("80"), at(2))
	require.NoError(t, err)
	_, err = b.Close(ctx, "BTC-USD", d("80"), at(3))
	require.Error(t, err)

	store.setFail(true)
	_, err = b.Open(ctx, "BTC-USD", OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")})
	require.ErrorIs(t, err, errs.ErrPersistence)

	assert.Equal(t, 1, logs.FilterMessage("position opened").Len())
	assert.Equal(t, 1, logs.FilterMessage("stop moved").Len())
	assert.Equal(t, 1, logs.FilterMessage("position closed").Len())

	rejected := logs.FilterMessage("close rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, "state_conflict", rejected[0].ContextMap()["kind"])

	failed := logs.FilterMessage("open not recorded").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStore struct {
	mu     sync.Mutex
	events map[string][]Event
	fail   bool
}

func newTestStore() *testStore {
	return &testStore{events: map[string][]Event{}}
}

func (s *testStore) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.events[ev.Instrument] = append(s.events[ev.Instrument], ev)
	return nil
}

func (s *testStore) Load(_ context.Context, instrument string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("disk unreadable")
	}
	return append([]Event(nil), s.events[instrument]...), nil
}

func (s *testStore) Instruments(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.events {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *testStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(min int) time.Time { return t0.Add(time.Duration(min) * time.Minute) }

func testOpts() []Option {
	n := 0
	return []Option{
		WithClock(func() time.Time { return t0 }),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
	}
}

func newTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	return New("BTC-USD", store, testOpts()...)
}

func mustOpen(t *testing.T, l *Ledger, req OpenRequest) Position {
	t.Helper()
	pos, err := l.Open(context.Background(), req)
	require.NoError(t, err)
	return pos
}

func mustTick(t *testing.T, l *Ledger, price string, min int) Outcome {
	t.Helper()
	out, err := l.OnPrice(context.Background(), d(price), at(min))
	require.NoError(t, err)
	return out
}

func TestRiskSizedTrailThenClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(t, nil)

	pos := mustOpen(t, l, OpenRequest{
		Direction:  market.Long,
		EntryPrice: d("50000"),
		RiskUSD:    d("25"),
		StopPrice:  d("49250"),
		ATR:        dp("500"),
		Trailing:   &TrailingConfig{TrailStartATR: d("1"), TrailDistanceATR: d("0.5")},
		At:         at(0),
	})
	assert.True(t, pos.Size.Equal(d("0.0333333333333333")), "size %s", pos.Size)
	assert.True(t, pos.HighWater.Equal(d("50000")))
	assert.True(t, pos.LowWater.Equal(d("50000")))

	out := mustTick(t, l, "50750", 1)
	require.NotNil(t, out.Position)
	require.NotNil(t, out.StopMovedFrom)
	assert.True(t, out.StopMovedFrom.Equal(d("49250")))
	assert.True(t, out.Position.StopPrice.Equal(d("50500")), "stop %s", out.Position.StopPrice)
	assert.Nil(t, out.Closed)

	trade, err := l.Close(ctx, d("50500"), at(2))
	require.NoError(t, err)
	assert.Equal(t, ExitManual, trade.ExitReason)
	assert.True(t, trade.RealizedPnL.Equal(d("16.66666666666665")), "pnl %s", trade.RealizedPnL)
	assert.True(t, trade.FinalStop.Equal(d("50500")))
	assert.True(t, trade.InitialStop.Equal(d("49250")))
	assert.IsType(t, Flat{}, l.State())
}

func TestGapThroughStopFillsAtTick(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{Direction: market.Long, EntryPrice: d("50000"), Size: d("1"), StopPrice: d("49250")})

	mustTick(t, l, "50600", 1)
	out := mustTick(t, l, "49000", 2)
	require.NotNil(t, out.Closed)
	assert.Equal(t, ExitStopHit, out.Closed.ExitReason)
	assert.True(t, out.Closed.ExitPrice.Equal(d("49000")), "exit %s", out.Closed.ExitPrice)
	assert.True(t, out.Closed.RealizedPnL.Equal(d("-1000")))
	assert.Nil(t, out.Position)
}

func TestStopTouchFillsAtStop(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{Direction: market.Long, EntryPrice: d("50000"), Size: d("2"), StopPrice: d("49250")})

	out := mustTick(t, l, "49250", 1)
	require.NotNil(t, out.Closed)
	assert.True(t, out.Closed.ExitPrice.Equal(d("49250")))
	assert.True(t, out.Closed.RealizedPnL.Equal(d("-1500")))
}

func TestTakeProfitFillsAtTarget(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{
		Direction:  market.Long,
		EntryPrice: d("100"),
		Size:       d("2"),
		StopPrice:  d("90"),
		TakeProfit: dp("120"),
	})

	out := mustTick(t, l, "119.99", 1)
	assert.Nil(t, out.Closed)

	out = mustTick(t, l, "125", 2)
	require.NotNil(t, out.Closed)
	assert.Equal(t, ExitTakeProfitHit, out.Closed.ExitReason)
	assert.True(t, out.Closed.ExitPrice.Equal(d("120")))
	assert.True(t, out.Closed.RealizedPnL.Equal(d("40")))
}

func TestShortBreakevenAndTrail(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{
		Direction:  market.Short,
		EntryPrice: d("100"),
		Size:       d("1"),
		StopPrice:  d("110"),
		ATR:        dp("5"),
		Trailing:   &TrailingConfig{MoveToBreakevenATR: d("1"), TrailStartATR: d("2"), TrailDistanceATR: d("1")},
	})

	out := mustTick(t, l, "95", 1)
	require.NotNil(t, out.Position)
	assert.True(t, out.Position.StopPrice.Equal(d("100")), "breakeven stop %s", out.Position.StopPrice)
	assert.True(t, out.Position.LowWater.Equal(d("95")))

	out = mustTick(t, l, "90", 2)
	assert.True(t, out.Position.StopPrice.Equal(d("95")), "trail stop %s", out.Position.StopPrice)

	// A rally does not loosen the trailed stop.
	out = mustTick(t, l, "93", 3)
	assert.True(t, out.Position.StopPrice.Equal(d("95")))
	assert.True(t, out.Position.HighWater.Equal(d("100")))

	out = mustTick(t, l, "95", 4)
	require.NotNil(t, out.Closed)
	assert.Equal(t, ExitStopHit, out.Closed.ExitReason)
	assert.True(t, out.Closed.ExitPrice.Equal(d("95")))
	assert.True(t, out.Closed.RealizedPnL.Equal(d("5")))
}

func TestStopsOnlyTighten(t *testing.T) {
	t.Parallel()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{
		Direction:  market.Long,
		EntryPrice: d("100"),
		Size:       d("1"),
		StopPrice:  d("90"),
		ATR:        dp("2"),
		Trailing:   &TrailingConfig{MoveToBreakevenATR: d("1"), TrailStartATR: d("1.5"), TrailDistanceATR: d("2")},
	})

	prices := []string{"101", "103", "102.5", "106", "105", "109", "108.1", "111", "110", "114", "113", "112", "108"}
	prev := d("90")
	for i, p := range prices {
		out := mustTick(t, l, p, i+1)
		if out.Closed != nil {
			assert.True(t, out.Closed.FinalStop.GreaterThanOrEqual(prev))
			return
		}
		assert.True(t, out.Position.StopPrice.GreaterThanOrEqual(prev), "tick %s: stop %s < %s", p, out.Position.StopPrice, prev)
		prev = out.Position.StopPrice
	}
	t.Fatal("expected the trailed stop to close the position")
}

func TestStaleTicksIgnored(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	l := newTestLedger(t, store)
	mustOpen(t, l, OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")})

	mustTick(t, l, "105", 5)

	out := mustTick(t, l, "80", 5)
	assert.True(t, out.Stale)
	out = mustTick(t, l, "80", 4)
	assert.True(t, out.Stale)

	pos, ok := l.Position()
	require.True(t, ok)
	assert.True(t, pos.LowWater.Equal(d("100")))
	assert.True(t, l.Summary().LastPrice.Equal(d("105")))
}

func TestFlatIgnoresTicks(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	l := newTestLedger(t, store)

	out := mustTick(t, l, "100", 1)
	assert.Equal(t, Outcome{}, out)
	assert.Zero(t, l.Seq())
	assert.Empty(t, store.events)
}

func TestEveryAcceptedTickIsRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore()
	l := newTestLedger(t, store)
	mustOpen(t, l, OpenRequest{Direction: market.Long, EntryPrice: d("50000"), Size: d("1"), StopPrice: d("49000")})

	mustTick(t, l, "50700", 1)
	mustTick(t, l, "50300", 2)
	assert.True(t, mustTick(t, l, "50200", 2).Stale)

	kinds := []EventKind{}
	for _, ev := range store.events["BTC-USD"] {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventOpened, EventMarked, EventMarked}, kinds)

	restored, err := Restore(ctx, "BTC-USD", store, testOpts()...)
	require.NoError(t, err)
	assert.Equal(t, l.Summary(), restored.Summary())
	assert.True(t, restored.Summary().LastPrice.Equal(d("50300")))
	assert.True(t, restored.Summary().UnrealizedPnL.Equal(d("300")))

	// An old tick through the stop must not close either ledger.
	for _, led := range []*Ledger{l, restored} {
		out, err := led.OnPrice(ctx, d("48900"), at(1).Add(30*time.Second))
		require.NoError(t, err)
		assert.True(t, out.Stale)
		assert.Nil(t, out.Closed)
		_, open := led.Position()
		assert.True(t, open)
	}

	// Adjust validates against the restored mark.
	_, err = restored.Adjust(ctx, AdjustRequest{Stop: dp("50400"), At: at(3)})
	assert.ErrorIs(t, err, errs.ErrInvalidStopPlacement)
}

func TestStateConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(t, nil)

	_, err := l.Close(ctx, d("100"), time.Time{})
	assert.ErrorIs(t, err, errs.ErrNoOpenPosition)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	_, err = l.Adjust(ctx, AdjustRequest{Stop: dp("95")})
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	req := OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")}
	mustOpen(t, l, req)
	_, err = l.Open(ctx, req)
	assert.ErrorIs(t, err, errs.ErrPositionAlreadyOpen)
	assert.ErrorIs(t, err, errs.ErrStateConflict)
	assert.Equal(t, errs.KindStateConflict, errs.KindOf(err))
	assert.False(t, errs.Retryable(err))
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	base := OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")}
	tests := []struct {
		name string
		mut  func(r *OpenRequest)
		want error
	}{
		{"stop above long entry", func(r *OpenRequest) { r.StopPrice = d("101") }, errs.ErrInvalidStopPlacement},
		{"stop at entry", func(r *OpenRequest) { r.StopPrice = d("100") }, errs.ErrInvalidStopPlacement},
		{"short stop below", func(r *OpenRequest) { r.Direction = market.Short }, errs.ErrInvalidStopPlacement},
		{"no size", func(r *OpenRequest) { r.Size = decimal.Zero }, errs.ErrInvalidSize},
		{"negative size", func(r *OpenRequest) { r.Size = d("-1") }, errs.ErrInvalidSize},
		{"size and risk", func(r *OpenRequest) { r.RiskUSD = d("10") }, errs.ErrInvalidSize},
		{"target on loss side", func(r *OpenRequest) { r.TakeProfit = dp("95") }, errs.ErrInvalidTarget},
		{"trailing without atr", func(r *OpenRequest) { r.Trailing = &TrailingConfig{TrailStartATR: d("1"), TrailDistanceATR: d("1")} }, errs.ErrInvalidTrailing},
		{"zero atr", func(r *OpenRequest) { r.ATR = dp("0") }, errs.ErrValidation},
		{"bad trailing", func(r *OpenRequest) {
			r.ATR = dp("2")
			r.Trailing = &TrailingConfig{TrailStartATR: d("1")}
		}, errs.ErrInvalidTrailing},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := newTestLedger(t, nil)
			req := base
			tt.mut(&req)
			_, err := l.Open(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, errs.ErrValidation)
			assert.IsType(t, Flat{}, l.State())
		})
	}
}

func TestAdjust(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(t, nil)
	mustOpen(t, l, OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")})

	pos, err := l.Adjust(ctx, AdjustRequest{Stop: dp("95")})
	require.NoError(t, err)
	assert.True(t, pos.StopPrice.Equal(d("95")))

	// Equal is allowed.
	_, err = l.Adjust(ctx, AdjustRequest{Stop: dp("95")})
	require.NoError(t, err)

	_, err = l.Adjust(ctx, AdjustRequest{Stop: dp("94.99")})
	assert.ErrorIs(t, err, errs.ErrStopWouldLoosen)
	assert.ErrorIs(t, err, errs.ErrStateConflict)

	// Through the market is a placement error, not a tightening.
	_, err = l.Adjust(ctx, AdjustRequest{Stop: dp("101")})
	assert.ErrorIs(t, err, errs.ErrInvalidStopPlacement)

	_, err = l.Adjust(ctx, AdjustRequest{TakeProfit: dp("99")})
	assert.ErrorIs(t, err, errs.ErrInvalidTarget)

	pos, err = l.Adjust(ctx, AdjustRequest{TakeProfit: dp("130")})
	require.NoError(t, err)
	require.NotNil(t, pos.TakeProfit)
	assert.True(t, pos.TakeProfit.Equal(d("130")))
	assert.True(t, pos.StopPrice.Equal(d("95")))

	_, err = l.Adjust(ctx, AdjustRequest{})
	assert.ErrorIs(t, err, errs.ErrValidation)

	cur, _ := l.Position()
	assert.True(t, cur.StopPrice.Equal(d("95")))
}

func TestAppendFailureLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore()
	l := newTestLedger(t, store)
	req := OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90"),
		ATR: dp("2"), Trailing: &TrailingConfig{TrailStartATR: d("1"), TrailDistanceATR: d("1")}}

	store.setFail(true)
	_, err := l.Open(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.True(t, errs.Retryable(err))
	assert.IsType(t, Flat{}, l.State())
	assert.Zero(t, l.Seq())

	store.setFail(false)
	mustOpen(t, l, req)
	before, _ := l.Position()

	store.setFail(true)
	_, err = l.OnPrice(ctx, d("105"), at(1))
	assert.ErrorIs(t, err, errs.ErrPersistence)
	_, err = l.Adjust(ctx, AdjustRequest{Stop: dp("95")})
	assert.ErrorIs(t, err, errs.ErrPersistence)
	_, err = l.Close(ctx, d("101"), at(2))
	assert.ErrorIs(t, err, errs.ErrPersistence)

	after, ok := l.Position()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Empty(t, l.Trades())
	assert.Equal(t, int64(1), l.Seq())

	// The failed tick did not advance the stale gate.
	store.setFail(false)
	out := mustTick(t, l, "105", 1)
	assert.False(t, out.Stale)
	assert.True(t, out.Position.StopPrice.Equal(d("103")))
}

func TestReplayIsDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore()
	live := newTestLedger(t, store)

	mustOpen(t, live, OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90"),
		ATR: dp("2"), Trailing: &TrailingConfig{MoveToBreakevenATR: d("1"), TrailStartATR: d("2"), TrailDistanceATR: d("1")}})
	mustTick(t, live, "103", 1)
	mustTick(t, live, "106", 2)
	mustTick(t, live, "105", 3)
	_, err := live.Close(ctx, d("104.5"), at(4))
	require.NoError(t, err)
	mustOpen(t, live, OpenRequest{Direction: market.Short, EntryPrice: d("104"), RiskUSD: d("30"), StopPrice: d("107"), TakeProfit: dp("98"), At: at(5)})
	_, err = live.Adjust(ctx, AdjustRequest{Stop: dp("106"), At: at(6)})
	require.NoError(t, err)
	mustTick(t, live, "101", 7)
	// Leaves the water marks and the stop unchanged.
	out := mustTick(t, live, "102", 8)
	assert.Nil(t, out.StopMovedFrom)

	a, err := Restore(ctx, "BTC-USD", store)
	require.NoError(t, err)
	b, err := Restore(ctx, "BTC-USD", store)
	require.NoError(t, err)

	assert.Equal(t, a.State(), b.State())
	assert.Equal(t, a.Trades(), b.Trades())
	assert.Equal(t, a.Summary(), b.Summary())
	assert.Equal(t, a.Seq(), b.Seq())

	assert.Equal(t, live.State(), a.State())
	assert.Equal(t, live.Trades(), a.Trades())
	assert.Equal(t, live.Seq(), a.Seq())
	assert.Equal(t, live.Summary(), a.Summary())
	assert.True(t, a.Summary().LastPrice.Equal(d("102")))

	out, err = a.OnPrice(ctx, d("101.5"), at(8))
	require.NoError(t, err)
	assert.True(t, out.Stale)
}

func TestReplayRejectsCorruptLog(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	live := newTestLedger(t, store)
	mustOpen(t, live, OpenRequest{Direction: market.Long, EntryPrice: d("100"), Size: d("1"), StopPrice: d("90")})
	_, err := live.Close(context.Background(), d("101"), at(1))
	require.NoError(t, err)

	events := store.events["BTC-USD"]

	l := New("BTC-USD", nil)
	err = l.Replay([]Event{events[1]})
	assert.ErrorIs(t, err, ErrCorruptLog)

	err = l.Replay([]Event{events[0], events[0]})
	assert.ErrorIs(t, err, ErrCorruptLog)
	assert.IsType(t, Flat{}, l.State(), "failed replay must not leave partial state")
	assert.Zero(t, l.Seq())

	other := New("ETH-USD", nil)
	assert.ErrorIs(t, other.Replay(events), ErrCorruptLog)

	require.NoError(t, l.Replay(events))
	assert.Len(t, l.Trades(), 1)
}

func TestRestoreLoadFailure(t *testing.T) {
	t.Parallel()
	store := newTestStore()
	store.setFail(true)
	_, err := Restore(context.Background(), "BTC-USD", store)
	assert.ErrorIs(t, err, errs.ErrPersistence)
}

func TestRealizedPnLReconciles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(t, nil)

	trades := []struct {
		dir   market.Direction
		entry string
		stop  string
		size  string
		exit  string
	}{
		{market.Long, "100", "95", "3", "104.25"},
		{market.Short, "104", "110", "0.5", "107"},
		{market.Long, "101.1", "100", "7", "101.1"},
		{market.Short, "99", "101", "2.2", "90.35"},
		{market.Long, "0.3", "0.1", "1000", "0.29"},
	}

	sum := decimal.Zero
	for i, tr := range trades {
		mustOpen(t, l, OpenRequest{Direction: tr.dir, EntryPrice: d(tr.entry), Size: d(tr.size), StopPrice: d(tr.stop), At: at(2 * i)})
		ct, err := l.Close(ctx, d(tr.exit), at(2*i+1))
		require.NoError(t, err)

		want := d(tr.exit).Sub(d(tr.entry)).Mul(d(tr.size)).Mul(tr.dir.Sign())
		assert.True(t, ct.RealizedPnL.Equal(want), "trade %d: %s != %s", i, ct.RealizedPnL, want)
		sum = sum.Add(ct.RealizedPnL)
	}

	s := l.Summary()
	assert.True(t, s.RealizedPnL.Equal(sum), "summary %s != %s", s.RealizedPnL, sum)
	assert.Equal(t, 5, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 1, s.Breakeven)
	assert.True(t, s.WinRate.Equal(d("0.4")))
}

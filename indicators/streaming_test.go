package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingIndicators(t *testing.T) {
	candles := createTestCandles()

	tests := []struct {
		name   string
		ind    Indicator
		warmup int
		batch  func() []Value
	}{
		{"EMA(3)", NewEMA(3), 3, func() []Value { v, _ := EMASeries(candles, 3); return v }},
		{"RSI(4)", NewRSI(4), 5, func() []Value { v, _ := RSISeries(candles, 4); return v }},
		{"ATR(3)", NewATR(3), 3, func() []Value { v, _ := ATRSeries(candles, 3); return v }},
		{"SMA(5)", NewSMA(5), 5, func() []Value { v, _ := SMASeries([]float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}, 5); return v }},
		{"OBV", NewOBV(), 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := tt.ind
			assert.Equal(t, tt.name, ind.Name())
			assert.Equal(t, tt.warmup, ind.Warmup())
			assert.False(t, ind.Ready())
			assert.False(t, ind.Value().Defined())

			var batch []Value
			if tt.batch != nil {
				batch = tt.batch()
				require.Len(t, batch, len(candles))
			}

			for i, c := range candles {
				ind.Update(c)
				assert.Equal(t, i+1 >= tt.warmup, ind.Ready(), "bar %d", i)
				if batch != nil {
					assert.Equal(t, batch[i], ind.Value(), "bar %d", i)
				}
			}

			ind.Reset()
			assert.False(t, ind.Ready())
			assert.False(t, ind.Value().Defined())
		})
	}
}

func TestOBVStreamingMatchesBatch(t *testing.T) {
	candles := createTestCandles()
	o := NewOBV()
	want := OBVSeries(candles)

	for i, c := range candles {
		o.Update(c)
		got, ok := o.Value().Float()
		require.True(t, ok)
		assert.Equal(t, want[i], got)
	}
	// Every close rises after the first bar.
	assert.Equal(t, 1100.0+1200+1300+1400+1500+1600+1700+1800+1900, want[len(want)-1])
}

func TestSimpleMARolls(t *testing.T) {
	ma := NewSMA(3)
	for _, x := range []float64{1, 2, 3, 4} {
		ma.Add(x)
	}
	assert.InDelta(t, 3.0, ma.Value().Or(0), 1e-9)
}

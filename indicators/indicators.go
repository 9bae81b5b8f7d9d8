// Package indicators provides technical analysis indicators over OHLCV bars.
//
// Every indicator exists in two forms: a streaming type that consumes one bar
// at a time, and a batch function over a bar slice that returns a series
// aligned with its input. Both are pure; batch functions never modify the
// bars they are given and are safe to call concurrently.
//
// Values that are not yet defined during warm-up are reported as an
// undefined Value, never as zero.
package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
)

// Indicator computes a single streaming value from bars.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many bars are needed before Ready() is true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is defined.
	Ready() bool

	// Value returns the current value, undefined until Ready().
	Value() Value
}

func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s: %w: must be positive, got %d", name, errs.ErrInvalidPeriod, period)
	}
	return nil
}

// series runs a fresh streaming indicator across bars and collects the value
// after each one.
func series(ind Indicator, bars []market.Bar) []Value {
	out := make([]Value, len(bars))
	for i, b := range bars {
		ind.Update(b)
		out[i] = ind.Value()
	}
	return out
}

// last returns the final element of a series, or undefined when empty.
func last(vs []Value) Value {
	if len(vs) == 0 {
		return Undefined()
	}
	return vs[len(vs)-1]
}

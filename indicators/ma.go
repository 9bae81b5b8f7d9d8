package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
)

// SMASeries is the simple moving average of xs over period. The first
// period-1 entries are undefined.
func SMASeries(xs []float64, period int) ([]Value, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}

	ma := NewSMA(period)
	out := make([]Value, len(xs))
	for i, x := range xs {
		ma.Add(x)
		out[i] = ma.Value()
	}
	return out, nil
}

// EMASeries is the exponential moving average of bar closes. It is seeded
// with the simple average of the first period closes, so entries before
// index period-1 are undefined.
func EMASeries(bars []market.Bar, period int) ([]Value, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	return series(NewEMA(period), bars), nil
}

// EMA returns the latest EMA reading over bars.
func EMA(bars []market.Bar, period int) (Value, error) {
	vs, err := EMASeries(bars, period)
	if err != nil {
		return Undefined(), err
	}
	return last(vs), nil
}

// MA returns the latest simple average of bar closes.
func MA(bars []market.Bar, period int) (Value, error) {
	vs, err := SMASeries(market.Bars(bars).Closes(), period)
	if err != nil {
		return Undefined(), err
	}
	return last(vs), nil
}

// ForceEMA is EMA that fails when the history is shorter than period.
func ForceEMA(bars []market.Bar, period int) (float64, error) {
	v, err := EMA(bars, period)
	if err != nil {
		return 0, err
	}
	return v.Force(fmt.Sprintf("EMA(%d)", period))
}

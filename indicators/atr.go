package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrader/market"
)

// AverageTrueRange is a streaming Wilder ATR. The first bar has no previous
// close, so its true range is its high-low span; the ATR is seeded with the
// mean of the first period true ranges and is ready on bar period.
type AverageTrueRange struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prevClose float64
	havePrev  bool
}

// NewATR creates an Average True Range indicator. period must be positive.
func NewATR(period int) *AverageTrueRange {
	return &AverageTrueRange{period: period}
}

func (a *AverageTrueRange) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

func (a *AverageTrueRange) Warmup() int {
	return a.period
}

func (a *AverageTrueRange) Reset() {
	*a = AverageTrueRange{period: a.period}
}

func (a *AverageTrueRange) Update(b market.Bar) {
	tr := b.High - b.Low
	if a.havePrev {
		tr = trueRange(b, a.prevClose)
	}
	a.prevClose = b.Close
	a.havePrev = true

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}

	p := float64(a.period)
	a.atr = (a.atr*(p-1) + tr) / p
}

func (a *AverageTrueRange) Ready() bool {
	return a.count >= a.period
}

func (a *AverageTrueRange) Value() Value {
	if !a.Ready() {
		return Undefined()
	}
	return Defined(a.atr)
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(b market.Bar, prevClose float64) float64 {
	highLow := b.High - b.Low
	highClose := math.Abs(b.High - prevClose)
	lowClose := math.Abs(b.Low - prevClose)

	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ATRSeries computes Wilder's ATR aligned with bars.
func ATRSeries(bars []market.Bar, period int) ([]Value, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return nil, err
	}
	return series(NewATR(period), bars), nil
}

// ATR returns the latest ATR reading over bars.
func ATR(bars []market.Bar, period int) (Value, error) {
	vs, err := ATRSeries(bars, period)
	if err != nil {
		return Undefined(), err
	}
	return last(vs), nil
}

// ForceATR is ATR that fails when fewer than period bars are available.
func ForceATR(bars []market.Bar, period int) (float64, error) {
	v, err := ATR(bars, period)
	if err != nil {
		return 0, err
	}
	return v.Force(fmt.Sprintf("ATR(%d)", period))
}

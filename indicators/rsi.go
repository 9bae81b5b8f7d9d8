package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
)

// RelativeStrength is Wilder's RSI. It needs period price changes, so it
// becomes ready on bar period+1.
type RelativeStrength struct {
	period int

	prev     float64
	havePrev bool

	changes int
	gainSum float64
	lossSum float64
	avgGain float64
	avgLoss float64
}

// NewRSI creates a Wilder RSI. period must be positive.
func NewRSI(period int) *RelativeStrength {
	return &RelativeStrength{period: period}
}

func (r *RelativeStrength) Name() string {
	return fmt.Sprintf("RSI(%d)", r.period)
}

func (r *RelativeStrength) Warmup() int {
	return r.period + 1
}

func (r *RelativeStrength) Reset() {
	*r = RelativeStrength{period: r.period}
}

func (r *RelativeStrength) Update(b market.Bar) {
	r.Add(b.Close)
}

// Add consumes the next close.
func (r *RelativeStrength) Add(x float64) {
	if !r.havePrev {
		r.prev = x
		r.havePrev = true
		return
	}

	change := x - r.prev
	r.prev = x

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	if r.changes < r.period {
		r.gainSum += gain
		r.lossSum += loss
		r.changes++
		if r.changes == r.period {
			r.avgGain = r.gainSum / p
			r.avgLoss = r.lossSum / p
		}
		return
	}

	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RelativeStrength) Ready() bool {
	return r.changes >= r.period
}

func (r *RelativeStrength) Value() Value {
	if !r.Ready() {
		return Undefined()
	}
	return Defined(rsiFromAverages(r.avgGain, r.avgLoss))
}

// rsiFromAverages maps Wilder averages to 0..100. No movement at all reads
// as a neutral 50.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RSISeries computes Wilder's RSI of bar closes, aligned with bars.
func RSISeries(bars []market.Bar, period int) ([]Value, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return nil, err
	}
	return series(NewRSI(period), bars), nil
}

// RSI returns the latest RSI reading over bars.
func RSI(bars []market.Bar, period int) (Value, error) {
	vs, err := RSISeries(bars, period)
	if err != nil {
		return Undefined(), err
	}
	return last(vs), nil
}

// ForceRSI is RSI that fails when fewer than period+1 bars are available.
func ForceRSI(bars []market.Bar, period int) (float64, error) {
	v, err := RSI(bars, period)
	if err != nil {
		return 0, err
	}
	return v.Force(fmt.Sprintf("RSI(%d)", period))
}

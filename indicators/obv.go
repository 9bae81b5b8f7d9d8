package indicators

import "github.com/rustyeddy/papertrader/market"

// OnBalanceVolume is the cumulative signed volume:
//
//	obv[0] = 0
//	obv[t] = obv[t-1] + volume[t]*sign(close[t]-close[t-1])
type OnBalanceVolume struct {
	obv       float64
	prevClose float64
	bars      int
}

func NewOBV() *OnBalanceVolume {
	return &OnBalanceVolume{}
}

func (o *OnBalanceVolume) Name() string { return "OBV" }

func (o *OnBalanceVolume) Warmup() int { return 1 }

func (o *OnBalanceVolume) Reset() { *o = OnBalanceVolume{} }

func (o *OnBalanceVolume) Update(b market.Bar) {
	if o.bars > 0 {
		switch {
		case b.Close > o.prevClose:
			o.obv += b.Volume
		case b.Close < o.prevClose:
			o.obv -= b.Volume
		}
	}
	o.prevClose = b.Close
	o.bars++
}

func (o *OnBalanceVolume) Ready() bool { return o.bars > 0 }

func (o *OnBalanceVolume) Value() Value {
	if !o.Ready() {
		return Undefined()
	}
	return Defined(o.obv)
}

// OBVSeries returns the running OBV for each bar. Unlike the smoothed
// indicators it has no warm-up: the first entry is 0.
func OBVSeries(bars []market.Bar) []float64 {
	o := NewOBV()
	out := make([]float64, len(bars))
	for i, b := range bars {
		o.Update(b)
		out[i] = o.obv
	}
	return out
}

// OBV returns the final running total, 0 for an empty history.
func OBV(bars []market.Bar) float64 {
	vs := OBVSeries(bars)
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1]
}

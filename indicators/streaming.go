package indicators

import (
	"fmt"

	"github.com/rustyeddy/papertrader/market"
)

// SimpleMA is a streaming simple moving average over arbitrary values.
type SimpleMA struct {
	period int
	window []float64
	sum    float64
}

// NewSMA creates a simple moving average. period must be positive.
func NewSMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SimpleMA) Warmup() int {
	return m.period
}

func (m *SimpleMA) Reset() {
	m.window = m.window[:0]
	m.sum = 0
}

func (m *SimpleMA) Update(b market.Bar) {
	m.Add(b.Close)
}

// Add consumes the next raw value.
func (m *SimpleMA) Add(x float64) {
	m.window = append(m.window, x)
	m.sum += x
	if len(m.window) > m.period {
		m.sum -= m.window[0]
		m.window = m.window[1:]
	}
}

func (m *SimpleMA) Ready() bool {
	return len(m.window) >= m.period
}

func (m *SimpleMA) Value() Value {
	if !m.Ready() {
		return Undefined()
	}
	return Defined(m.sum / float64(m.period))
}

// ExponentialMA is a streaming exponential moving average of closes:
//
//	ema[t] = close[t]*k + ema[t-1]*(1-k), k = 2/(period+1)
//
// seeded with the simple average of the first period closes.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

// NewEMA creates an exponential moving average. period must be positive.
func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Warmup() int {
	return e.period
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *ExponentialMA) Update(b market.Bar) {
	e.Add(b.Close)
}

// Add consumes the next raw value.
func (e *ExponentialMA) Add(x float64) {
	if e.count < e.period {
		e.warmupSum += x
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = x*e.multiplier + e.ema*(1-e.multiplier)
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() Value {
	if !e.Ready() {
		return Undefined()
	}
	return Defined(e.ema)
}

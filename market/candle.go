package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV candle. Bars for an instrument are ordered by Time.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Validate checks that a single bar is internally consistent.
func (b Bar) Validate() error {
	if b.High < b.Low {
		return fmt.Errorf("bar %s: high %v below low %v", b.Time.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Close <= 0 || b.Open <= 0 || b.Low <= 0 {
		return fmt.Errorf("bar %s: prices must be positive", b.Time.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s: negative volume %v", b.Time.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Bars is an ordered bar sequence for one instrument.
type Bars []Bar

// Closes returns the close prices in order.
func (bs Bars) Closes() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar.
func (bs Bars) Last() (Bar, bool) {
	if len(bs) == 0 {
		return Bar{}, false
	}
	return bs[len(bs)-1], true
}

// Validate checks every bar and that timestamps strictly increase. Gaps are
// allowed.
func (bs Bars) Validate() error {
	for i, b := range bs {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !b.Time.After(bs[i-1].Time) {
			return fmt.Errorf("bar %d: time %s not after %s", i,
				b.Time.Format(time.RFC3339), bs[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Resample aggregates bars into buckets of width d aligned to the Unix
// epoch. A bucket takes the first open, the extreme high and low, the last
// close and the summed volume; it is stamped with the bucket start.
func (bs Bars) Resample(d time.Duration) Bars {
	if d <= 0 || len(bs) == 0 {
		return nil
	}
	var out Bars
	for _, b := range bs {
		start := b.Time.Truncate(d)
		n := len(out)
		if n > 0 && out[n-1].Time.Equal(start) {
			cur := &out[n-1]
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		b.Time = start
		out = append(out, b)
	}
	return out
}

// Package signals consolidates indicator readings for one instrument into a
// single snapshot with a coarse interpretation of each.
package signals

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/market"
)

type RSIState string

const (
	RSIUnavailable RSIState = "unavailable"
	RSIOversold    RSIState = "oversold"
	RSINeutral     RSIState = "neutral"
	RSIOverbought  RSIState = "overbought"
)

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// OBVState says whether volume flow agrees with the price move.
type OBVState string

const (
	OBVConfirms OBVState = "confirms"
	OBVDenies   OBVState = "denies"
	OBVNeutral  OBVState = "neutral"
)

// Request selects and parameterizes the indicators in a snapshot.
type Request struct {
	IncludeRSI bool
	RSIPeriod  int
	Oversold   float64
	Overbought float64

	IncludeEMA bool
	EMAFast    int
	EMASlow    int
	// BufferPct widens the neutral band around the slow EMA (0.004 = 0.4%).
	BufferPct float64
	// ConfirmEvery, when positive, also computes the trend on bars
	// resampled to that width.
	ConfirmEvery time.Duration

	OBVMAPeriod int

	IncludeATR bool
	ATRPeriod  int
}

// DefaultRequest is RSI(14) 30/70, EMA 20/50 with a 0.4% buffer confirmed on
// 6h bars, OBV against its 20-bar average and ATR(14).
func DefaultRequest() Request {
	return Request{
		IncludeRSI:   true,
		RSIPeriod:    14,
		Oversold:     30,
		Overbought:   70,
		IncludeEMA:   true,
		EMAFast:      20,
		EMASlow:      50,
		BufferPct:    0.004,
		ConfirmEvery: 6 * time.Hour,
		OBVMAPeriod:  20,
		IncludeATR:   true,
		ATRPeriod:    14,
	}
}

func (r Request) Validate() error {
	if r.IncludeRSI {
		if r.RSIPeriod <= 0 {
			return fmt.Errorf("%w: rsi period %d", errs.ErrInvalidPeriod, r.RSIPeriod)
		}
		if r.Oversold >= r.Overbought {
			return fmt.Errorf("%w: oversold %v must be below overbought %v", errs.ErrValidation, r.Oversold, r.Overbought)
		}
	}
	if r.IncludeEMA {
		if r.EMAFast <= 0 || r.EMASlow <= 0 {
			return fmt.Errorf("%w: ema periods %d/%d", errs.ErrInvalidPeriod, r.EMAFast, r.EMASlow)
		}
		if r.EMAFast >= r.EMASlow {
			return fmt.Errorf("%w: fast ema %d must be shorter than slow %d", errs.ErrValidation, r.EMAFast, r.EMASlow)
		}
		if r.BufferPct < 0 {
			return fmt.Errorf("%w: negative buffer", errs.ErrValidation)
		}
	}
	if r.OBVMAPeriod <= 0 {
		return fmt.Errorf("%w: obv ma period %d", errs.ErrInvalidPeriod, r.OBVMAPeriod)
	}
	if r.IncludeATR && r.ATRPeriod <= 0 {
		return fmt.Errorf("%w: atr period %d", errs.ErrInvalidPeriod, r.ATRPeriod)
	}
	return nil
}

// Snapshot is the consolidated reading at the last bar. Indicators that were
// not requested, or are still warming up, are undefined.
type Snapshot struct {
	Instrument string    `json:"instrument"`
	AsOf       time.Time `json:"as_of"`
	Price      float64   `json:"price"`
	Bars       int       `json:"bars"`

	RSI      indicators.Value `json:"rsi"`
	RSIState RSIState         `json:"rsi_state"`

	EMAFast      indicators.Value `json:"ema_fast"`
	EMASlow      indicators.Value `json:"ema_slow"`
	Trend        Trend            `json:"trend"`
	ConfirmTrend Trend            `json:"confirm_trend"`

	OBV      float64          `json:"obv"`
	OBVMA    indicators.Value `json:"obv_ma"`
	OBVState OBVState         `json:"obv_state"`

	ATR indicators.Value `json:"atr"`

	req Request
}

// Hub computes snapshots. It holds no state and is safe for concurrent use.
type Hub struct{}

func NewHub() *Hub { return &Hub{} }

// Snapshot computes the requested indicators over bars, which must be
// ordered and non-empty. bars is not modified.
func (h *Hub) Snapshot(instrument string, bars []market.Bar, req Request) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no bars for %s", errs.ErrValidation, instrument)
	}
	if err := req.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := market.Bars(bars).Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %v", errs.ErrValidation, instrument, err)
	}

	lastBar := bars[len(bars)-1]
	s := Snapshot{
		Instrument:   instrument,
		AsOf:         lastBar.Time,
		Price:        lastBar.Close,
		Bars:         len(bars),
		RSIState:     RSIUnavailable,
		Trend:        TrendNeutral,
		ConfirmTrend: TrendNeutral,
		OBVState:     OBVNeutral,
		req:          req,
	}

	var err error
	if req.IncludeRSI {
		if s.RSI, err = indicators.RSI(bars, req.RSIPeriod); err != nil {
			return Snapshot{}, err
		}
		s.RSIState = classifyRSI(s.RSI, req.Oversold, req.Overbought)
	}

	if req.IncludeEMA {
		if s.EMAFast, err = indicators.EMA(bars, req.EMAFast); err != nil {
			return Snapshot{}, err
		}
		if s.EMASlow, err = indicators.EMA(bars, req.EMASlow); err != nil {
			return Snapshot{}, err
		}
		s.Trend = classifyTrend(s.EMAFast, s.EMASlow, req.BufferPct)

		if req.ConfirmEvery > 0 {
			htf := market.Bars(bars).Resample(req.ConfirmEvery)
			fast, err := indicators.EMA(htf, req.EMAFast)
			if err != nil {
				return Snapshot{}, err
			}
			slow, err := indicators.EMA(htf, req.EMASlow)
			if err != nil {
				return Snapshot{}, err
			}
			s.ConfirmTrend = classifyTrend(fast, slow, 0)
		}
	}

	obv := indicators.OBVSeries(bars)
	s.OBV = obv[len(obv)-1]
	ma, err := indicators.SMASeries(obv, req.OBVMAPeriod)
	if err != nil {
		return Snapshot{}, err
	}
	s.OBVMA = ma[len(ma)-1]
	if m, ok := s.OBVMA.Float(); ok {
		switch {
		case s.OBV > m:
			s.OBVState = OBVConfirms
		case s.OBV < m:
			s.OBVState = OBVDenies
		}
	}

	if req.IncludeATR {
		if s.ATR, err = indicators.ATR(bars, req.ATRPeriod); err != nil {
			return Snapshot{}, err
		}
	}
	return s, nil
}

func classifyRSI(v indicators.Value, oversold, overbought float64) RSIState {
	x, ok := v.Float()
	switch {
	case !ok:
		return RSIUnavailable
	case x <= oversold:
		return RSIOversold
	case x >= overbought:
		return RSIOverbought
	default:
		return RSINeutral
	}
}

func classifyTrend(fast, slow indicators.Value, buffer float64) Trend {
	f, okf := fast.Float()
	s, oks := slow.Float()
	switch {
	case !okf || !oks:
		return TrendNeutral
	case f > s*(1+buffer):
		return TrendBullish
	case f < s*(1-buffer):
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// Summary renders the snapshot as one line, e.g.
//
//	Signals for BTC-USD: RSI=28.41 (oversold) | EMA20>50 (bullish) | OBV>MA (confirms) | ATR=512.30
func (s Snapshot) Summary() string {
	parts := []string{}
	if s.req.IncludeRSI {
		parts = append(parts, fmt.Sprintf("RSI=%s (%s)", s.RSI, s.RSIState))
	}
	if s.req.IncludeEMA {
		switch s.Trend {
		case TrendBullish:
			parts = append(parts, fmt.Sprintf("EMA%d>%d (bullish)", s.req.EMAFast, s.req.EMASlow))
		case TrendBearish:
			parts = append(parts, fmt.Sprintf("EMA%d<%d (bearish)", s.req.EMAFast, s.req.EMASlow))
		default:
			parts = append(parts, "EMA neutral")
		}
		if s.req.ConfirmEvery > 0 {
			parts = append(parts, fmt.Sprintf("%s trend %s", shortDuration(s.req.ConfirmEvery), s.ConfirmTrend))
		}
	}
	switch s.OBVState {
	case OBVConfirms:
		parts = append(parts, "OBV>MA (confirms)")
	case OBVDenies:
		parts = append(parts, "OBV<MA (denies)")
	default:
		parts = append(parts, "OBV neutral")
	}
	if s.ATR.Defined() {
		parts = append(parts, "ATR="+s.ATR.String())
	}
	return fmt.Sprintf("Signals for %s: %s", s.Instrument, strings.Join(parts, " | "))
}

// shortDuration prints 6h rather than 6h0m0s.
func shortDuration(d time.Duration) string {
	return strings.TrimSuffix(strings.TrimSuffix(d.String(), "0s"), "0m")
}

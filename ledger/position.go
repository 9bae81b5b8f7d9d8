package ledger

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitManual        ExitReason = "MANUAL"
	ExitStopHit       ExitReason = "STOP_HIT"
	ExitTakeProfitHit ExitReason = "TAKE_PROFIT_HIT"
)

// TrailingConfig moves the stop as price advances, in multiples of the ATR
// captured at entry. A non-positive multiple disables its step.
type TrailingConfig struct {
	MoveToBreakevenATR decimal.Decimal `json:"move_to_be_atr"`
	TrailStartATR      decimal.Decimal `json:"trail_start_atr"`
	TrailDistanceATR   decimal.Decimal `json:"trail_distance_atr"`
}

// DefaultTrailing arms breakeven at +1 ATR and trails 1.25 ATR behind the
// best price once +2 ATR is reached.
func DefaultTrailing() TrailingConfig {
	return TrailingConfig{
		MoveToBreakevenATR: decimal.NewFromInt(1),
		TrailStartATR:      decimal.NewFromInt(2),
		TrailDistanceATR:   decimal.RequireFromString("1.25"),
	}
}

func (c TrailingConfig) Validate() error {
	if c.MoveToBreakevenATR.IsNegative() || c.TrailStartATR.IsNegative() || c.TrailDistanceATR.IsNegative() {
		return fmt.Errorf("%w: multiples must not be negative", errs.ErrInvalidTrailing)
	}
	if c.TrailStartATR.IsPositive() && !c.TrailDistanceATR.IsPositive() {
		return fmt.Errorf("%w: trail distance must be positive when trailing is armed", errs.ErrInvalidTrailing)
	}
	if !c.MoveToBreakevenATR.IsPositive() && !c.TrailStartATR.IsPositive() {
		return fmt.Errorf("%w: neither breakeven nor trailing is enabled", errs.ErrInvalidTrailing)
	}
	return nil
}

// Position is the single open trade of an instrument.
type Position struct {
	TradeID    string           `json:"trade_id"`
	Instrument string           `json:"instrument"`
	Direction  market.Direction `json:"direction"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	Size       decimal.Decimal  `json:"size"`

	// InitialStop is the stop given at open; StopPrice only tightens from it.
	InitialStop decimal.Decimal  `json:"initial_stop"`
	StopPrice   decimal.Decimal  `json:"stop_price"`
	TakeProfit  *decimal.Decimal `json:"take_profit,omitempty"`

	Trailing *TrailingConfig  `json:"trailing,omitempty"`
	ATR      *decimal.Decimal `json:"atr,omitempty"`

	// HighWater and LowWater are the extreme prices seen since entry. The
	// favorable one drives trailing; the other is the adverse excursion.
	HighWater decimal.Decimal `json:"high_water_price"`
	LowWater  decimal.Decimal `json:"low_water_price"`

	OpenedAt time.Time `json:"opened_at"`
	Strategy string    `json:"strategy,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// PnLAt is the profit or loss of closing the whole position at price.
func (p Position) PnLAt(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(p.Size).Mul(p.Direction.Sign())
}

// BestPrice is the most favorable price seen since entry.
func (p Position) BestPrice() decimal.Decimal {
	if p.Direction == market.Short {
		return p.LowWater
	}
	return p.HighWater
}

// WorstPrice is the most adverse price seen since entry.
func (p Position) WorstPrice() decimal.Decimal {
	if p.Direction == market.Short {
		return p.HighWater
	}
	return p.LowWater
}

// favorable is how far price has moved in the trade's favor from entry.
func (p Position) favorable(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.EntryPrice).Mul(p.Direction.Sign())
}

// tighter reports whether candidate is a strictly more protective stop than
// current: higher for Long, lower for Short.
func (p Position) tighter(candidate, current decimal.Decimal) bool {
	if p.Direction == market.Short {
		return candidate.LessThan(current)
	}
	return candidate.GreaterThan(current)
}

func (p Position) stopHit(price decimal.Decimal) bool {
	if p.Direction == market.Short {
		return price.GreaterThanOrEqual(p.StopPrice)
	}
	return price.LessThanOrEqual(p.StopPrice)
}

func (p Position) targetHit(price decimal.Decimal) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Direction == market.Short {
		return price.LessThanOrEqual(*p.TakeProfit)
	}
	return price.GreaterThanOrEqual(*p.TakeProfit)
}

// ClosedTrade is the immutable record of a finished position.
type ClosedTrade struct {
	TradeID     string           `json:"trade_id"`
	Instrument  string           `json:"instrument"`
	Direction   market.Direction `json:"direction"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	ExitPrice   decimal.Decimal  `json:"exit_price"`
	Size        decimal.Decimal  `json:"size"`
	InitialStop decimal.Decimal  `json:"initial_stop"`
	FinalStop   decimal.Decimal  `json:"final_stop"`
	OpenedAt    time.Time        `json:"opened_at"`
	ClosedAt    time.Time        `json:"closed_at"`
	RealizedPnL decimal.Decimal  `json:"realized_pnl"`
	ExitReason  ExitReason       `json:"exit_reason"`
	Strategy    string           `json:"strategy,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

func closeTrade(p Position, exit decimal.Decimal, at time.Time, reason ExitReason) ClosedTrade {
	return ClosedTrade{
		TradeID:     p.TradeID,
		Instrument:  p.Instrument,
		Direction:   p.Direction,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   exit,
		Size:        p.Size,
		InitialStop: p.InitialStop,
		FinalStop:   p.StopPrice,
		OpenedAt:    p.OpenedAt,
		ClosedAt:    at,
		RealizedPnL: p.PnLAt(exit),
		ExitReason:  reason,
		Strategy:    p.Strategy,
		Notes:       p.Notes,
	}
}

// State is the tagged per-instrument ledger state: Flat or Open.
type State interface {
	isState()
}

// Flat means no position is open.
type Flat struct{}

// Open holds the one open position.
type Open struct {
	Position Position
}

func (Flat) isState() {}
func (Open) isState() {}

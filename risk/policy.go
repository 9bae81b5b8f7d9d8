package risk

import (
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// Policy holds advisory pre-trade limits. A zero field disables its check.
type Policy struct {
	// MaxRiskUSD caps the currency loss at the initial stop.
	MaxRiskUSD decimal.Decimal

	// MaxRiskPct caps the stop loss as a fraction of equity (0.01 = 1%).
	MaxRiskPct decimal.Decimal

	// MinRR is the minimum reward/risk when a take profit is set.
	MinRR decimal.Decimal
}

// TradeIntent is a trade about to be opened.
type TradeIntent struct {
	Instrument string
	Direction  market.Direction
	Size       decimal.Decimal
	Entry      decimal.Decimal
	Stop       decimal.Decimal
	TakeProfit *decimal.Decimal
}

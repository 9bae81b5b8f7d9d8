// Package risk derives stop placement and position size from a currency
// risk budget and ATR. Everything here is pure and deterministic.
package risk

import (
	"fmt"

	"github.com/rustyeddy/papertrader/errs"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// DefaultMinVolFrac is the volatility floor used by SizeFromATR when ATR is
// missing or implausibly small: 0.1% of price.
var DefaultMinVolFrac = decimal.RequireFromString("0.001")

var minSize = decimal.New(1, -9)

// ValidateStop checks that stop is strictly on the loss side of entry:
// below it for Long, above it for Short.
func ValidateStop(dir market.Direction, entry, stop decimal.Decimal) error {
	if !dir.Valid() {
		return fmt.Errorf("%w: unknown direction %d", errs.ErrValidation, int(dir))
	}
	if !entry.IsPositive() {
		return fmt.Errorf("%w: entry %s must be positive", errs.ErrInvalidPrice, entry)
	}
	if !stop.IsPositive() {
		return fmt.Errorf("%w: stop %s must be positive", errs.ErrInvalidStopPlacement, stop)
	}
	switch dir {
	case market.Long:
		if stop.GreaterThanOrEqual(entry) {
			return fmt.Errorf("%w: long stop %s must be below entry %s", errs.ErrInvalidStopPlacement, stop, entry)
		}
	case market.Short:
		if stop.LessThanOrEqual(entry) {
			return fmt.Errorf("%w: short stop %s must be above entry %s", errs.ErrInvalidStopPlacement, stop, entry)
		}
	}
	return nil
}

// SizeForRisk returns the quantity that loses riskUSD if price moves from
// entry to stop: riskUSD / |entry - stop|.
func SizeForRisk(dir market.Direction, riskUSD, entry, stop decimal.Decimal) (decimal.Decimal, error) {
	if !riskUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: risk %s must be positive", errs.ErrInvalidSize, riskUSD)
	}
	if err := ValidateStop(dir, entry, stop); err != nil {
		return decimal.Zero, err
	}
	return riskUSD.Div(entry.Sub(stop).Abs()), nil
}

// SuggestStop places a stop multiple ATRs away from entry on the loss side.
func SuggestStop(entry, atr decimal.Decimal, dir market.Direction, multiple decimal.Decimal) (decimal.Decimal, error) {
	dist, err := atrDistance(entry, atr, dir, multiple)
	if err != nil {
		return decimal.Zero, err
	}
	stop := entry.Sub(dist.Mul(dir.Sign()))
	if !stop.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: stop %s at %s ATR is not positive", errs.ErrInvalidStopPlacement, stop, multiple)
	}
	return stop, nil
}

// SuggestTarget places a take profit multiple ATRs away from entry on the
// profit side.
func SuggestTarget(entry, atr decimal.Decimal, dir market.Direction, multiple decimal.Decimal) (decimal.Decimal, error) {
	dist, err := atrDistance(entry, atr, dir, multiple)
	if err != nil {
		return decimal.Zero, err
	}
	tp := entry.Add(dist.Mul(dir.Sign()))
	if !tp.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: target %s at %s ATR is not positive", errs.ErrInvalidTarget, tp, multiple)
	}
	return tp, nil
}

func atrDistance(entry, atr decimal.Decimal, dir market.Direction, multiple decimal.Decimal) (decimal.Decimal, error) {
	if !dir.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown direction %d", errs.ErrValidation, int(dir))
	}
	if !entry.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: entry %s must be positive", errs.ErrInvalidPrice, entry)
	}
	if !atr.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: atr %s must be positive", errs.ErrValidation, atr)
	}
	if !multiple.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: atr multiple %s must be positive", errs.ErrValidation, multiple)
	}
	return atr.Mul(multiple), nil
}

// SizeFromATR sizes a position so that a one-ATR move costs riskUSD. The
// ATR used is floored at price*minVolFrac so quiet markets do not produce
// oversized positions; a zero or negative atr uses the floor alone.
func SizeFromATR(riskUSD, price, atr, minVolFrac decimal.Decimal) (decimal.Decimal, error) {
	if !riskUSD.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: risk %s must be positive", errs.ErrInvalidSize, riskUSD)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price %s must be positive", errs.ErrInvalidPrice, price)
	}
	if !minVolFrac.IsPositive() {
		minVolFrac = DefaultMinVolFrac
	}

	unit := decimal.Max(atr, price.Mul(minVolFrac))
	return decimal.Max(minSize, riskUSD.Div(unit)), nil
}

// PlannedRisk is the currency loss if the stop is hit.
func PlannedRisk(size, entry, stop decimal.Decimal) decimal.Decimal {
	return size.Mul(entry.Sub(stop).Abs())
}

// RR is reward/risk of a planned trade, zero when risk is zero.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(risk)
}

package market

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a position.
type Direction int

const (
	Long Direction = iota + 1
	Short
)

// Sign is +1 for Long and -1 for Short. Profit is (exit-entry)*size*Sign.
func (d Direction) Sign() decimal.Decimal {
	if d == Short {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func (d Direction) Valid() bool {
	return d == Long || d == Short
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts LONG/SHORT and the buy/sell aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("marshal direction: invalid value %d", int(d))
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Tick is one observed trade price for an instrument.
type Tick struct {
	Instrument string
	Time       time.Time
	Price      decimal.Decimal
}

// Newer reports whether t strictly follows prev in time. Re-delivered ticks
// with the same timestamp are not newer.
func (t Tick) Newer(prev Tick) bool {
	return prev.Time.IsZero() || t.Time.After(prev.Time)
}

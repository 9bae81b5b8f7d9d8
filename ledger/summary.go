package ledger

import (
	"github.com/shopspring/decimal"
)

// PositionView is an open position marked at the last seen price.
type PositionView struct {
	Position
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`

	// StopPnL is the P&L locked in if the current stop fills; positive once
	// the stop is past entry.
	StopPnL decimal.Decimal `json:"stop_pnl"`
}

// Summary is the read-only projection of a ledger. Position is nil when the
// instrument is flat, which is distinct from any zero-valued position.
type Summary struct {
	Instrument  string        `json:"instrument"`
	State       string        `json:"state"`
	HasPosition bool          `json:"has_position"`
	Position    *PositionView `json:"position"`

	LastPrice     decimal.Decimal `json:"last_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`

	Trades    int             `json:"trades"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	Breakeven int             `json:"breakeven"`
	WinRate   decimal.Decimal `json:"win_rate"`
	AvgWin    decimal.Decimal `json:"avg_win"`
	AvgLoss   decimal.Decimal `json:"avg_loss"`

	// ProfitFactor is gross profit over gross loss; nil without losses.
	ProfitFactor *decimal.Decimal `json:"profit_factor"`
	BestTrade    *ClosedTrade     `json:"best_trade,omitempty"`
	WorstTrade   *ClosedTrade     `json:"worst_trade,omitempty"`
}

const (
	StateFlat = "FLAT"
	StateOpen = "OPEN"
)

// Summary projects the ledger without changing it.
func (l *Ledger) Summary() Summary {
	s := Summary{
		Instrument:    l.instrument,
		State:         StateFlat,
		LastPrice:     l.mark,
		UnrealizedPnL: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		WinRate:       decimal.Zero,
		AvgWin:        decimal.Zero,
		AvgLoss:       decimal.Zero,
	}

	if pos, ok := l.Position(); ok {
		s.State = StateOpen
		s.HasPosition = true
		s.UnrealizedPnL = pos.PnLAt(l.mark)
		s.Position = &PositionView{
			Position:      pos,
			MarkPrice:     l.mark,
			UnrealizedPnL: s.UnrealizedPnL,
			StopPnL:       pos.PnLAt(pos.StopPrice),
		}
	}

	grossWin, grossLoss := decimal.Zero, decimal.Zero
	for i := range l.closed {
		t := l.closed[i]
		s.RealizedPnL = s.RealizedPnL.Add(t.RealizedPnL)
		switch {
		case t.RealizedPnL.IsPositive():
			s.Wins++
			grossWin = grossWin.Add(t.RealizedPnL)
		case t.RealizedPnL.IsNegative():
			s.Losses++
			grossLoss = grossLoss.Add(t.RealizedPnL.Neg())
		default:
			s.Breakeven++
		}
		if s.BestTrade == nil || t.RealizedPnL.GreaterThan(s.BestTrade.RealizedPnL) {
			s.BestTrade = &l.closed[i]
		}
		if s.WorstTrade == nil || t.RealizedPnL.LessThan(s.WorstTrade.RealizedPnL) {
			s.WorstTrade = &l.closed[i]
		}
	}
	s.Trades = len(l.closed)

	if s.Trades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(s.Trades)))
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(s.Losses))).Neg()
		pf := grossWin.Div(grossLoss)
		s.ProfitFactor = &pf
	}
	if s.BestTrade != nil {
		best, worst := *s.BestTrade, *s.WorstTrade
		s.BestTrade, s.WorstTrade = &best, &worst
	}
	return s
}

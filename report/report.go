// Package report projects ledger summaries into the forms handed to callers:
// a flat JSON record, a one-line text status and an Org-mode review page.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/shopspring/decimal"
)

// Account is the paper account the P&L is measured against.
type Account struct {
	StartingBalance decimal.Decimal
	Currency        string
}

var hundred = decimal.NewFromInt(100)

// Record is the flat form of a ledger summary. The position fields are null
// when the instrument is flat.
type Record struct {
	Instrument  string `json:"instrument"`
	State       string `json:"state"`
	HasPosition bool   `json:"has_position"`

	TradeID       *string           `json:"trade_id"`
	Direction     *market.Direction `json:"direction"`
	Size          *decimal.Decimal  `json:"size"`
	EntryPrice    *decimal.Decimal  `json:"entry_price"`
	StopPrice     *decimal.Decimal  `json:"stop_price"`
	TakeProfit    *decimal.Decimal  `json:"take_profit"`
	OpenedAt      *time.Time        `json:"opened_at"`
	LastPrice     decimal.Decimal   `json:"last_price"`
	UnrealizedPnL decimal.Decimal   `json:"unrealized_pnl"`

	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Cash        decimal.Decimal `json:"cash"`
	Equity      decimal.Decimal `json:"equity"`
	PnL         decimal.Decimal `json:"pnl"`
	PnLPct      decimal.Decimal `json:"pnl_pct"`
	Currency    string          `json:"currency,omitempty"`

	Trades       int              `json:"trades"`
	Wins         int              `json:"wins"`
	Losses       int              `json:"losses"`
	Breakeven    int              `json:"breakeven"`
	WinRate      decimal.Decimal  `json:"win_rate"`
	AvgWin       decimal.Decimal  `json:"avg_win"`
	AvgLoss      decimal.Decimal  `json:"avg_loss"`
	ProfitFactor *decimal.Decimal `json:"profit_factor"`
}

// FromSummary flattens s. Cash is the starting balance plus realized P&L;
// equity adds the open position's unrealized P&L.
func FromSummary(s ledger.Summary, acct Account) Record {
	r := Record{
		Instrument:    s.Instrument,
		State:         s.State,
		HasPosition:   s.HasPosition,
		LastPrice:     s.LastPrice,
		UnrealizedPnL: s.UnrealizedPnL,
		RealizedPnL:   s.RealizedPnL,
		Currency:      acct.Currency,
		Trades:        s.Trades,
		Wins:          s.Wins,
		Losses:        s.Losses,
		Breakeven:     s.Breakeven,
		WinRate:       s.WinRate,
		AvgWin:        s.AvgWin,
		AvgLoss:       s.AvgLoss,
		ProfitFactor:  s.ProfitFactor,
	}
	if p := s.Position; p != nil {
		tradeID, dir, opened := p.TradeID, p.Direction, p.OpenedAt
		size, entry, stop := p.Size, p.EntryPrice, p.StopPrice
		r.TradeID, r.Direction, r.OpenedAt = &tradeID, &dir, &opened
		r.Size, r.EntryPrice, r.StopPrice = &size, &entry, &stop
		r.TakeProfit = p.TakeProfit
	}

	r.Cash = acct.StartingBalance.Add(s.RealizedPnL)
	r.Equity = r.Cash.Add(s.UnrealizedPnL)
	r.PnL = r.Equity.Sub(acct.StartingBalance)
	r.PnLPct = decimal.Zero
	if acct.StartingBalance.IsPositive() {
		r.PnLPct = r.PnL.Div(acct.StartingBalance).Mul(hundred)
	}
	return r
}

// JSON encodes the flat record for s.
func JSON(s ledger.Summary, acct Account) ([]byte, error) {
	return json.Marshal(FromSummary(s, acct))
}

// Text renders s as one status line:
//
//	BTC-USD Equity=10012.50 Cash=10000.00 PnL=12.50 (0.13%). Pos=LONG size=0.03333333 entry=50000.00 SL=49250.00 TP=none
func Text(s ledger.Summary, acct Account) string {
	r := FromSummary(s, acct)
	line := fmt.Sprintf("%s Equity=%s Cash=%s PnL=%s (%s%%). ",
		r.Instrument, r.Equity.StringFixed(2), r.Cash.StringFixed(2), r.PnL.StringFixed(2), r.PnLPct.StringFixed(2))
	if !r.HasPosition {
		return line + fmt.Sprintf("Pos=FLAT trades=%d W/L=%d/%d", r.Trades, r.Wins, r.Losses)
	}
	return line + fmt.Sprintf("Pos=%s size=%s entry=%s SL=%s TP=%s uPnL=%s",
		r.Direction, r.Size.StringFixed(8), r.EntryPrice.StringFixed(2), r.StopPrice.StringFixed(2),
		optional(r.TakeProfit), r.UnrealizedPnL.StringFixed(2))
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return "none"
	}
	return d.StringFixed(2)
}

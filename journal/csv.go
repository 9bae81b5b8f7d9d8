package journal

import (
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
)

var tradeHeader = []string{
	"trade_id", "instrument", "direction", "size", "entry_price", "exit_price",
	"initial_stop", "final_stop", "open_time", "close_time", "realized_pnl", "exit_reason", "strategy",
}

// WriteTradesCSV writes a header and one row per trade.
func WriteTradesCSV(w io.Writer, trades []ledger.ClosedTrade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.TradeID,
			t.Instrument,
			t.Direction.String(),
			t.Size.String(),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.InitialStop.String(),
			t.FinalStop.String(),
			t.OpenedAt.UTC().Format(time.RFC3339),
			t.ClosedAt.UTC().Format(time.RFC3339),
			t.RealizedPnL.StringFixed(2),
			string(t.ExitReason),
			t.Strategy,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportTradesCSV writes trades to a new file at path.
func ExportTradesCSV(path string, trades []ledger.ClosedTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

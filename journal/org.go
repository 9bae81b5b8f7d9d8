package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
)

// FormatTradeOrg renders a closed trade as an Org-mode entry. Facts go in the
// PROPERTIES drawer so they stay searchable; the headings below it are left
// for the trader's own notes.
func FormatTradeOrg(t ledger.ClosedTrade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Instrument, t.Direction, shortID(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", t.Direction)
	fmt.Fprintf(&b, ":SIZE: %s\n", t.Size)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", t.ExitPrice)
	fmt.Fprintf(&b, ":INITIAL_STOP: %s\n", t.InitialStop)
	fmt.Fprintf(&b, ":FINAL_STOP: %s\n", t.FinalStop)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.ClosedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", t.RealizedPnL.StringFixed(2))
	fmt.Fprintf(&b, ":REASON: %s\n", t.ExitReason)
	if t.Strategy != "" {
		fmt.Fprintf(&b, ":STRATEGY: %s\n", t.Strategy)
	}
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders trades separated by blank lines.
func FormatTradesOrg(trades []ledger.ClosedTrade) string {
	parts := make([]string, len(trades))
	for i, t := range trades {
		parts[i] = FormatTradeOrg(t)
	}
	return strings.Join(parts, "\n\n")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

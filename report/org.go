package report

import (
	"bytes"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/shopspring/decimal"
)

// Review is the input to the Org page: every instrument's record plus the
// account totals.
type Review struct {
	Created time.Time
	Account Account
	Records []Record

	Realized   decimal.Decimal
	Unrealized decimal.Decimal
	Equity     decimal.Decimal
	Trades     int
	Wins       int
	Losses     int
}

// NewReview totals summaries against one shared account.
func NewReview(summaries []ledger.Summary, acct Account, created time.Time) Review {
	rv := Review{Created: created, Account: acct, Realized: decimal.Zero, Unrealized: decimal.Zero}
	for _, s := range summaries {
		rv.Records = append(rv.Records, FromSummary(s, acct))
		rv.Realized = rv.Realized.Add(s.RealizedPnL)
		rv.Unrealized = rv.Unrealized.Add(s.UnrealizedPnL)
		rv.Trades += s.Trades
		rv.Wins += s.Wins
		rv.Losses += s.Losses
	}
	rv.Equity = acct.StartingBalance.Add(rv.Realized).Add(rv.Unrealized)
	return rv
}

var orgFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"pct":   func(d decimal.Decimal) string { return d.Mul(hundred).StringFixed(1) },
	"deref": func(d *decimal.Decimal) decimal.Decimal { return *d },
	"opt": func(d *decimal.Decimal) string {
		if d == nil {
			return "-"
		}
		return d.String()
	},
}

var orgTemplate = template.Must(template.New("review").Funcs(orgFuncs).Parse(OrgTemplate))

// Org renders the review page.
func (rv Review) Org() (string, error) {
	buf := new(bytes.Buffer)
	if err := orgTemplate.Execute(buf, rv); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteOrg renders the review page to path.
func (rv Review) WriteOrg(path string) error {
	out, err := rv.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0644)
}

const OrgTemplate = `* PAPER ACCOUNT REVIEW [{{.Created.Format "2006-01-02 Mon 15:04"}}]
:PROPERTIES:
:START_BAL:   {{money .Account.StartingBalance}}
:EQUITY:      {{money .Equity}}
:REALIZED:    {{money .Realized}}
:UNREALIZED:  {{money .Unrealized}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:END:

** Positions
| Instrument | State | Side | Size | Entry | Stop | TP | Last | uPnL |
|------------+-------+------+------+-------+------+----+------+------|
{{- range .Records}}
| {{.Instrument}} | {{.State}} | {{if .Direction}}{{.Direction}}{{else}}-{{end}} | {{opt .Size}} | {{opt .EntryPrice}} | {{opt .StopPrice}} | {{opt .TakeProfit}} | {{.LastPrice}} | {{money .UnrealizedPnL}} |
{{- end}}

** Performance
| Instrument | Trades | Wins | Losses | Win % | Realized | Avg Win | Avg Loss | PF |
|------------+--------+------+--------+-------+----------+---------+----------+----|
{{- range .Records}}
| {{.Instrument}} | {{.Trades}} | {{.Wins}} | {{.Losses}} | {{pct .WinRate}} | {{money .RealizedPnL}} | {{money .AvgWin}} | {{money .AvgLoss}} | {{if .ProfitFactor}}{{money (deref .ProfitFactor)}}{{else}}-{{end}} |
{{- end}}
`

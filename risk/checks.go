package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`

	PlannedRisk decimal.Decimal `json:"planned_risk"`
	PlannedRR   decimal.Decimal `json:"planned_rr"`
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks an intent against the policy. It never fails; structural
// problems (bad stop side, non-positive size) are reported as violations so
// callers can show them alongside the limit checks.
func Evaluate(p Policy, intent TradeIntent, equity decimal.Decimal) Decision {
	d := Decision{Allowed: true}

	if err := ValidateStop(intent.Direction, intent.Entry, intent.Stop); err != nil {
		d.add("BAD_STOP", err.Error())
		return d
	}
	if !intent.Size.IsPositive() {
		d.add("NO_SIZE", "size must be positive")
		return d
	}

	d.PlannedRisk = PlannedRisk(intent.Size, intent.Entry, intent.Stop)
	if intent.TakeProfit != nil {
		d.PlannedRR = RR(intent.Entry, intent.Stop, *intent.TakeProfit)
	}

	if p.MaxRiskUSD.IsPositive() && d.PlannedRisk.GreaterThan(p.MaxRiskUSD) {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %s exceeds max %s", d.PlannedRisk.StringFixed(2), p.MaxRiskUSD.StringFixed(2)))
	}
	if p.MaxRiskPct.IsPositive() && equity.IsPositive() {
		pct := d.PlannedRisk.Div(equity)
		if pct.GreaterThan(p.MaxRiskPct) {
			d.add("RISK_PCT_TOO_HIGH",
				fmt.Sprintf("planned risk %s%% of equity exceeds max %s%%",
					pct.Mul(decimal.NewFromInt(100)).StringFixed(2),
					p.MaxRiskPct.Mul(decimal.NewFromInt(100)).StringFixed(2)))
		}
	}
	if p.MinRR.IsPositive() && intent.TakeProfit != nil && d.PlannedRR.LessThan(p.MinRR) {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %s below minimum %s", d.PlannedRR.StringFixed(2), p.MinRR.StringFixed(2)))
	}

	return d
}

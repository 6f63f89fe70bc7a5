package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/journal"
)

// Performance summarizes an account's results over a reporting period.
type Performance struct {
	AccountID string
	Period    string

	StartingBalance decimal.Decimal
	EndingBalance   decimal.Decimal
	ProfitLoss      decimal.Decimal
	ProfitLossPct   float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
}

var periodDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// Compute derives performance from the transaction log. The starting balance
// is the balance_before of the first record at or after the period start; the
// journal chain makes that the exact balance when the period opened.
// With no records in the period it falls back to the account's cumulative
// deposits.
func Compute(j journal.Journal, acct account.Account, period string, now time.Time) (Performance, error) {
	var start time.Time
	switch {
	case period == "all" || period == "":
		period = "all"
		start = acct.CreatedAt
	default:
		days, ok := periodDays[period]
		if !ok {
			return Performance{}, &account.ValidationError{Field: "period", Msg: fmt.Sprintf("unknown period %q", period)}
		}
		start = now.AddDate(0, 0, -days)
	}

	cur, err := j.Query(acct.ID, start, time.Time{})
	if err != nil {
		return Performance{}, fmt.Errorf("query journal: %w", err)
	}
	defer cur.Close()

	starting := acct.TotalDeposited
	if cur.Next() {
		starting = cur.Record().BalanceBefore
	}
	if err := cur.Err(); err != nil {
		return Performance{}, fmt.Errorf("scan journal: %w", err)
	}

	p := Performance{
		AccountID:       acct.ID,
		Period:          period,
		StartingBalance: starting,
		EndingBalance:   acct.Balance,
		ProfitLoss:      acct.Balance.Sub(starting),
		TotalTrades:     acct.TotalTrades,
		WinningTrades:   acct.WinningTrades,
		LosingTrades:    acct.LosingTrades,
	}
	if starting.IsPositive() {
		pct, _ := p.ProfitLoss.Div(starting).Mul(decimal.NewFromInt(100)).Float64()
		p.ProfitLossPct = pct
	}
	if acct.TotalTrades > 0 {
		p.WinRate = 100 * float64(acct.WinningTrades) / float64(acct.TotalTrades)
	}
	return p, nil
}

package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Progress returns the integer percentage of budget consumed by spent.
// A non-positive budget yields 0 and overspending is capped at 100.
func Progress(budget, spent decimal.Decimal) int {
	switch {
	case !budget.IsPositive():
		return 0
	case spent.GreaterThanOrEqual(budget):
		return 100
	}
	pct := spent.Div(budget).Mul(hundred).Floor()
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

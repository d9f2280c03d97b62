package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryUsage is a category budget next to what was spent against it in a month.
type CategoryUsage struct {
	Category Category
	Limit    decimal.Decimal
	Used     decimal.Decimal
}

// Remaining is negative when the category is over budget.
func (u CategoryUsage) Remaining() decimal.Decimal {
	return u.Limit.Sub(u.Used)
}

func (u CategoryUsage) Progress() int {
	return Progress(u.Limit, u.Used)
}

// MonthOverview is a compact summary for a specific month.
type MonthOverview struct {
	Month      MonthKey
	Budget     decimal.Decimal
	Total      decimal.Decimal
	Progress   int
	Categories []CategoryUsage
}

// SortUsage orders usage rows by the fixed category order, unknown names last
// and alphabetically.
func SortUsage(rows []CategoryUsage) {
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].Category.Rank(), rows[j].Category.Rank()
		if ri != rj {
			return ri < rj
		}
		return rows[i].Category < rows[j].Category
	})
}

package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the on-disk representation of an expense date.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without time of day, always at UTC midnight.
	Date struct {
		time.Time
	}

	MonthlyBudget struct {
		Month  MonthKey
		Amount decimal.Decimal
	}

	CategoryBudget struct {
		Category Category
		Limit    decimal.Decimal
	}

	Expense struct {
		ID       int64
		Category Category // empty means uncategorised (NULL)
		Amount   decimal.Decimal
		Date     Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a yyyy-MM-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date the way it is stored.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Month returns the month key the date belongs to.
func (d Date) Month() MonthKey {
	return MonthKeyOf(d.Time)
}

// IsEmpty reports whether no date was supplied.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m MonthlyBudget) Validate() error {
	if _, err := ParseMonthKey(string(m.Month)); err != nil {
		return err
	}
	return ValidateAmount(m.Amount)
}

func (c CategoryBudget) Validate() error {
	if strings.TrimSpace(string(c.Category)) == "" {
		return ErrEmptyCategory
	}
	return ValidateAmount(c.Limit)
}

func (e Expense) Validate() error {
	if e.Date.IsEmpty() {
		return ErrInvalidDate
	}
	return ValidateAmount(e.Amount)
}

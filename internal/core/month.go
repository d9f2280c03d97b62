package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies a budgeting month as MM/yyyy.
type MonthKey string

const monthKeyLayout = "01/2006"

// ParseMonthKey validates the canonical MM/yyyy form. Single-digit months
// are rejected so keys stay comparable with strftime('%m/%Y', ...).
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyMonth
	}
	if len(s) != len(monthKeyLayout) {
		return "", fmt.Errorf("%w: month %q must be MM/yyyy", ErrInvalidDate, s)
	}
	if _, err := time.Parse(monthKeyLayout, s); err != nil {
		return "", fmt.Errorf("%w: month %q must be MM/yyyy", ErrInvalidDate, s)
	}
	return MonthKey(s), nil
}

func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// CurrentMonthKey is the month used when nothing has been budgeted yet.
func CurrentMonthKey(now time.Time) MonthKey {
	return MonthKeyOf(now)
}

func (m MonthKey) String() string {
	return string(m)
}

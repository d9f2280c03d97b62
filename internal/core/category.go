package core

import "strings"

// Category is one of the fixed budgeting labels.
type Category string

const (
	Housing            Category = "Housing"
	Utilities          Category = "Utilities"
	Transportation     Category = "Transportation"
	Food               Category = "Food"
	Healthcare         Category = "Healthcare"
	Insurance          Category = "Insurance"
	DebtPayments       Category = "Debt Payments"
	PersonalAndFamily  Category = "Personal & Family"
	Entertainment      Category = "Entertainment"
	SavingsInvestments Category = "Savings & Investments"
	Miscellaneous      Category = "Miscellaneous"
)

var categories = []Category{
	Housing,
	Utilities,
	Transportation,
	Food,
	Healthcare,
	Insurance,
	DebtPayments,
	PersonalAndFamily,
	Entertainment,
	SavingsInvestments,
	Miscellaneous,
}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyCategory
	}
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

// Rank is the category's position in display order, or len(Categories())
// for names outside the fixed set.
func (c Category) Rank() int {
	for i, known := range categories {
		if known == c {
			return i
		}
	}
	return len(categories)
}

func (c Category) String() string {
	return string(c)
}

package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/log"
)

// RecordReader is the read side of the record store the aggregator joins over.
type RecordReader interface {
	GetMonthlyBudget(ctx context.Context, month core.MonthKey) (decimal.Decimal, error)
	GetAllCategoryBudgets(ctx context.Context) (map[core.Category]decimal.Decimal, error)
	GetExpensesForMonth(ctx context.Context, month core.MonthKey) ([]core.Expense, error)
}

// Aggregator computes derived views over budgets and expenses. Totals are
// summed from the same tolerant expense listing the store returns, so a row
// skipped for a malformed date is skipped everywhere.
type Aggregator struct {
	store  RecordReader
	logger *log.Logger
}

func NewAggregator(store RecordReader, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Aggregator{
		store:  store,
		logger: logger.WithComponent(log.ComponentAggregate),
	}
}

// TotalExpensesForMonth sums every expense in month, including uncategorised
// ones and ones whose category has no budget row.
func (a *Aggregator) TotalExpensesForMonth(ctx context.Context, month core.MonthKey) (decimal.Decimal, error) {
	expenses, err := a.store.GetExpensesForMonth(ctx, month)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total expenses for %s: %w", month, err)
	}
	return totalOf(expenses), nil
}

// CategoryBudgetsWithUsage reports, for every budgeted category, its limit and
// what month's expenses used against it. Order is unspecified.
func (a *Aggregator) CategoryBudgetsWithUsage(ctx context.Context, month core.MonthKey) ([]core.CategoryUsage, error) {
	var (
		limits   map[core.Category]decimal.Decimal
		expenses []core.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		limits, err = a.store.GetAllCategoryBudgets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = a.store.GetExpensesForMonth(gctx, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("category usage for %s: %w", month, err)
	}

	return usageOf(limits, expenses), nil
}

// MonthOverview assembles everything a month summary shows: budget, total,
// progress and per-category usage in display order.
func (a *Aggregator) MonthOverview(ctx context.Context, month core.MonthKey) (core.MonthOverview, error) {
	var (
		budget   decimal.Decimal
		limits   map[core.Category]decimal.Decimal
		expenses []core.Expense
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budget, err = a.store.GetMonthlyBudget(gctx, month)
		return err
	})
	g.Go(func() error {
		var err error
		limits, err = a.store.GetAllCategoryBudgets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = a.store.GetExpensesForMonth(gctx, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthOverview{}, fmt.Errorf("month overview for %s: %w", month, err)
	}

	total := totalOf(expenses)
	usage := usageOf(limits, expenses)
	core.SortUsage(usage)

	a.logger.DebugContext(ctx, "Month overview computed",
		log.FieldOperation, log.OpAggregate,
		log.FieldMonth, month,
		log.FieldCount, len(expenses),
		log.FieldAmount, total.String())

	return core.MonthOverview{
		Month:      month,
		Budget:     budget,
		Total:      total,
		Progress:   core.Progress(budget, total),
		Categories: usage,
	}, nil
}

func totalOf(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func usageOf(limits map[core.Category]decimal.Decimal, expenses []core.Expense) []core.CategoryUsage {
	used := make(map[core.Category]decimal.Decimal, len(limits))
	for _, e := range expenses {
		if e.Category == "" {
			continue
		}
		used[e.Category] = used[e.Category].Add(e.Amount)
	}

	usage := make([]core.CategoryUsage, 0, len(limits))
	for category, limit := range limits {
		usage = append(usage, core.CategoryUsage{
			Category: category,
			Limit:    limit,
			Used:     used[category],
		})
	}
	return usage
}

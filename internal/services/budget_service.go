package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
)

// Store is the record store the facade writes through.
type Store interface {
	RecordReader
	AddMonthlyBudget(ctx context.Context, month core.MonthKey, amount decimal.Decimal) (int64, error)
	AddCategoryBudget(ctx context.Context, category core.Category, limit decimal.Decimal) (int64, error)
	DeleteCategoryBudget(ctx context.Context, category core.Category) error
	AddExpense(ctx context.Context, category core.Category, amount decimal.Decimal, date core.Date) (int64, error)
	GetAllBudgetMonths(ctx context.Context) ([]core.MonthKey, error)
	CountExpenses(ctx context.Context) (int64, error)
	ResetSchema(ctx context.Context) error
	Close() error
}

// BudgetService is the single entry point for callers. It validates raw
// month and category strings, substitutes today's date when none is given,
// and caches month overviews until a write touches them.
type BudgetService struct {
	store      Store
	aggregator *Aggregator
	overviews  cache.Cache[core.MonthOverview]
	logger     *log.Logger
	now        func() time.Time

	// generation is bumped by every invalidation; an overview computed under
	// an older generation is never cached.
	mu         sync.Mutex
	generation uint64
}

// NewBudgetService wires the facade over store. overviews may be nil to
// disable caching.
func NewBudgetService(store Store, overviews cache.Cache[core.MonthOverview], logger *log.Logger) *BudgetService {
	if logger == nil {
		logger = log.Discard()
	}
	return &BudgetService{
		store:      store,
		aggregator: NewAggregator(store, logger),
		overviews:  overviews,
		logger:     logger.WithComponent(log.ComponentBudget),
		now:        time.Now,
	}
}

func (s *BudgetService) AddMonthlyBudget(ctx context.Context, month string, amount decimal.Decimal) (int64, error) {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return 0, err
	}
	id, err := s.store.AddMonthlyBudget(ctx, key, amount)
	if err != nil {
		return 0, err
	}
	s.invalidate(key)
	return id, nil
}

// GetMonthlyBudget returns zero for a month without a budget.
func (s *BudgetService) GetMonthlyBudget(ctx context.Context, month string) (decimal.Decimal, error) {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return decimal.Zero, err
	}
	return s.store.GetMonthlyBudget(ctx, key)
}

func (s *BudgetService) AddCategoryBudget(ctx context.Context, category string, limit decimal.Decimal) (int64, error) {
	c, err := core.ParseCategory(category)
	if err != nil {
		return 0, err
	}
	id, err := s.store.AddCategoryBudget(ctx, c, limit)
	if err != nil {
		return 0, err
	}
	s.invalidateAll()
	return id, nil
}

func (s *BudgetService) GetAllCategoryBudgets(ctx context.Context) (map[core.Category]decimal.Decimal, error) {
	return s.store.GetAllCategoryBudgets(ctx)
}

// DeleteCategoryBudget removes a category budget together with its expenses.
func (s *BudgetService) DeleteCategoryBudget(ctx context.Context, category string) error {
	c, err := core.ParseCategory(category)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCategoryBudget(ctx, c); err != nil {
		return err
	}
	s.invalidateAll()
	return nil
}

// AddExpense records an expense; a zero date means today.
func (s *BudgetService) AddExpense(ctx context.Context, category string, amount decimal.Decimal, date core.Date) (int64, error) {
	c, err := core.ParseCategory(category)
	if err != nil {
		return 0, err
	}
	if date.IsEmpty() {
		date = core.DateOf(s.now())
	}
	id, err := s.store.AddExpense(ctx, c, amount, date)
	if err != nil {
		return 0, err
	}
	s.invalidate(date.Month())
	return id, nil
}

func (s *BudgetService) GetExpensesForMonth(ctx context.Context, month string) ([]core.Expense, error) {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return nil, err
	}
	return s.store.GetExpensesForMonth(ctx, key)
}

func (s *BudgetService) GetTotalExpensesForMonth(ctx context.Context, month string) (decimal.Decimal, error) {
	if s.overviews == nil {
		key, err := core.ParseMonthKey(month)
		if err != nil {
			return decimal.Zero, err
		}
		return s.aggregator.TotalExpensesForMonth(ctx, key)
	}
	overview, err := s.MonthOverview(ctx, month)
	if err != nil {
		return decimal.Zero, err
	}
	return overview.Total, nil
}

// GetAllCategoryBudgetsWithUsage returns one row per budgeted category. Callers
// must not rely on the order.
func (s *BudgetService) GetAllCategoryBudgetsWithUsage(ctx context.Context, month string) ([]core.CategoryUsage, error) {
	if s.overviews == nil {
		key, err := core.ParseMonthKey(month)
		if err != nil {
			return nil, err
		}
		return s.aggregator.CategoryBudgetsWithUsage(ctx, key)
	}
	overview, err := s.MonthOverview(ctx, month)
	if err != nil {
		return nil, err
	}
	return overview.Categories, nil
}

// GetAllBudgetMonths returns months in descending string order, which is not
// chronological across year boundaries.
func (s *BudgetService) GetAllBudgetMonths(ctx context.Context) ([]core.MonthKey, error) {
	return s.store.GetAllBudgetMonths(ctx)
}

// AvailableMonths is GetAllBudgetMonths falling back to the current month
// when nothing has been budgeted.
func (s *BudgetService) AvailableMonths(ctx context.Context) ([]core.MonthKey, error) {
	months, err := s.store.GetAllBudgetMonths(ctx)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 {
		return []core.MonthKey{core.CurrentMonthKey(s.now())}, nil
	}
	return months, nil
}

// MonthOverview returns the month's budget, spend, progress and usage rows.
// The returned value is a copy safe to modify.
func (s *BudgetService) MonthOverview(ctx context.Context, month string) (core.MonthOverview, error) {
	key, err := core.ParseMonthKey(month)
	if err != nil {
		return core.MonthOverview{}, err
	}

	if s.overviews != nil {
		if cached, ok := s.overviews.Get(string(key)); ok {
			s.logger.DebugContext(ctx, "Month overview served",
				log.FieldMonth, key,
				log.FieldCacheHit, true)
			return copyOverview(cached), nil
		}
	}

	generation := s.currentGeneration()
	overview, err := s.aggregator.MonthOverview(ctx, key)
	if err != nil {
		return core.MonthOverview{}, err
	}
	s.cacheOverview(key, generation, overview)
	return overview, nil
}

func (s *BudgetService) CountExpenses(ctx context.Context) (int64, error) {
	return s.store.CountExpenses(ctx)
}

// Reset destroys all data by recreating the schema. It must not run
// concurrently with any other call.
func (s *BudgetService) Reset(ctx context.Context) error {
	if err := s.store.ResetSchema(ctx); err != nil {
		return fmt.Errorf("reset schema: %w", err)
	}
	s.invalidateAll()
	s.logger.WarnContext(ctx, "All budget data removed")
	return nil
}

// Close closes the underlying store.
func (s *BudgetService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close budget service: %w", err)
	}
	return nil
}

func (s *BudgetService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// cacheOverview caches overview unless a write invalidated the cache after
// generation was read.
func (s *BudgetService) cacheOverview(key core.MonthKey, generation uint64, overview core.MonthOverview) {
	if s.overviews == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		s.logger.Debug("Stale month overview not cached", log.FieldMonth, key)
		return
	}
	s.overviews.Set(string(key), copyOverview(overview))
}

func (s *BudgetService) invalidate(month core.MonthKey) {
	if s.overviews == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.overviews.Delete(string(month))
}

func (s *BudgetService) invalidateAll() {
	if s.overviews == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.overviews.Clear()
}

func copyOverview(o core.MonthOverview) core.MonthOverview {
	o.Categories = append([]core.CategoryUsage(nil), o.Categories...)
	return o
}

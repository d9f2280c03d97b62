package services

import (
	"context"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/storage"
)

func newTestService(t *testing.T) (*BudgetService, *cache.LRUCache[core.MonthOverview]) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "budget.db"), nil)
	require.NoError(t, err)

	overviews := cache.NewLRUCache[core.MonthOverview](16, time.Minute)
	svc := NewBudgetService(repo, overviews, nil)
	t.Cleanup(func() { svc.Close() })
	return svc, overviews
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestBudgetService_TotalsAndUsage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddMonthlyBudget(ctx, "05/2025", dec("100"))
	require.NoError(t, err)
	_, err = svc.AddCategoryBudget(ctx, "Food", dec("200"))
	require.NoError(t, err)
	_, err = svc.AddCategoryBudget(ctx, "Transportation", dec("50"))
	require.NoError(t, err)

	_, err = svc.AddExpense(ctx, "Food", dec("10"), date(t, "2025-05-01"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Food", dec("5"), date(t, "2025-05-20"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Transportation", dec("7"), date(t, "2025-05-31"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Food", dec("1000"), date(t, "2025-06-01"))
	require.NoError(t, err)

	total, err := svc.GetTotalExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, total.Equal(dec("22")), "total %s", total)

	usage, err := svc.GetAllCategoryBudgetsWithUsage(ctx, "05/2025")
	require.NoError(t, err)
	sort.Slice(usage, func(i, j int) bool { return usage[i].Category < usage[j].Category })
	require.Len(t, usage, 2)
	require.Equal(t, core.Food, usage[0].Category)
	require.True(t, usage[0].Used.Equal(dec("15")))
	require.True(t, usage[0].Limit.Equal(dec("200")))
	require.Equal(t, core.Transportation, usage[1].Category)
	require.True(t, usage[1].Used.Equal(dec("7")))

	overview, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.Equal(t, 22, overview.Progress)

	expenses, err := svc.GetExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.Len(t, expenses, 3)
}

func TestBudgetService_WithoutCache(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "budget.db"), nil)
	require.NoError(t, err)
	svc := NewBudgetService(repo, nil, nil)
	t.Cleanup(func() { svc.Close() })

	_, err = svc.AddCategoryBudget(ctx, "Food", dec("20"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Food", dec("4.25"), date(t, "2025-05-01"))
	require.NoError(t, err)

	total, err := svc.GetTotalExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, total.Equal(dec("4.25")))

	usage, err := svc.GetAllCategoryBudgetsWithUsage(ctx, "05/2025")
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.True(t, usage[0].Remaining().Equal(dec("15.75")))
}

func TestBudgetService_RejectsEmptyInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddMonthlyBudget(ctx, "", dec("1"))
	require.ErrorIs(t, err, core.ErrEmptyMonth)

	_, err = svc.AddCategoryBudget(ctx, "  ", dec("1"))
	require.ErrorIs(t, err, core.ErrEmptyCategory)

	_, err = svc.AddExpense(ctx, "", dec("1"), core.Date{})
	require.ErrorIs(t, err, core.ErrEmptyCategory)

	_, err = svc.GetTotalExpensesForMonth(ctx, "2025-05")
	require.ErrorIs(t, err, core.ErrInvalidDate)

	_, err = svc.AddCategoryBudget(ctx, "Groceries", dec("1"))
	require.ErrorIs(t, err, core.ErrUnknownCategory)
}

func TestBudgetService_ExpenseNeedsBudgetedCategory(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddExpense(context.Background(), "Healthcare", dec("12"), date(t, "2025-05-01"))
	require.ErrorIs(t, err, core.ErrUnknownCategory)
}

func TestBudgetService_DefaultsExpenseDateToToday(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2025, time.March, 9, 18, 30, 0, 0, time.Local) }

	_, err := svc.AddCategoryBudget(ctx, "Food", dec("10"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Food", dec("3"), core.Date{})
	require.NoError(t, err)

	expenses, err := svc.GetExpensesForMonth(ctx, "03/2025")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	require.Equal(t, "2025-03-09", expenses[0].Date.String())
}

func TestBudgetService_AvailableMonths(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.now = func() time.Time { return time.Date(2026, time.October, 15, 0, 0, 0, 0, time.Local) }

	months, err := svc.AvailableMonths(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.MonthKey{"10/2026"}, months)

	all, err := svc.GetAllBudgetMonths(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = svc.AddMonthlyBudget(ctx, "01/2025", dec("1"))
	require.NoError(t, err)
	_, err = svc.AddMonthlyBudget(ctx, "12/2024", dec("1"))
	require.NoError(t, err)

	months, err = svc.AvailableMonths(ctx)
	require.NoError(t, err)
	require.Equal(t, []core.MonthKey{"12/2024", "01/2025"}, months)
}

func TestBudgetService_WritesInvalidateCachedOverview(t *testing.T) {
	ctx := context.Background()
	svc, overviews := newTestService(t)

	_, err := svc.AddCategoryBudget(ctx, "Food", dec("50"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Food", dec("10"), date(t, "2025-05-01"))
	require.NoError(t, err)

	first, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, first.Total.Equal(dec("10")))
	require.Equal(t, 1, overviews.Size())

	// Mutating the returned copy must not leak into the cache.
	first.Categories[0].Used = dec("999")
	again, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, again.Categories[0].Used.Equal(dec("10")))
	require.Equal(t, uint64(1), overviews.Stats().Hits)

	_, err = svc.AddExpense(ctx, "Food", dec("5"), date(t, "2025-05-02"))
	require.NoError(t, err)
	require.Equal(t, 0, overviews.Size())

	second, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, second.Total.Equal(dec("15")))

	_, err = svc.AddMonthlyBudget(ctx, "05/2025", dec("30"))
	require.NoError(t, err)
	third, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.Equal(t, 50, third.Progress)
}

func TestBudgetService_DeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddCategoryBudget(ctx, "Entertainment", dec("40"))
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, "Entertainment", dec("12"), date(t, "2025-05-01"))
	require.NoError(t, err)

	before, err := svc.GetTotalExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, before.Equal(dec("12")))

	require.NoError(t, svc.DeleteCategoryBudget(ctx, "entertainment"))

	after, err := svc.GetTotalExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, after.IsZero())

	count, err := svc.CountExpenses(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, svc.DeleteCategoryBudget(ctx, "Entertainment"), core.ErrNotFound)
}

func TestBudgetService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.AddMonthlyBudget(ctx, "05/2025", dec("100"))
	require.NoError(t, err)
	_, err = svc.AddCategoryBudget(ctx, "Food", dec("10"))
	require.NoError(t, err)
	_, err = svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	budget, err := svc.GetMonthlyBudget(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, budget.IsZero())

	overview, err := svc.MonthOverview(ctx, "05/2025")
	require.NoError(t, err)
	require.Empty(t, overview.Categories)

	_, err = svc.AddCategoryBudget(ctx, "Food", dec("10"))
	require.NoError(t, err)
}

// gatedStore pauses the first armed expense listing after it has loaded,
// until release is closed.
type gatedStore struct {
	*storage.SQLiteRepository
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetExpensesForMonth(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	expenses, err := g.SQLiteRepository.GetExpensesForMonth(ctx, month)
	if g.armed.CompareAndSwap(true, false) {
		close(g.loaded)
		<-g.release
	}
	return expenses, err
}

func TestBudgetService_OverlappingReadDoesNotCacheStaleOverview(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(ctx, filepath.Join(t.TempDir(), "budget.db"), nil)
	require.NoError(t, err)

	store := &gatedStore{
		SQLiteRepository: repo,
		loaded:           make(chan struct{}),
		release:          make(chan struct{}),
	}
	svc := NewBudgetService(store, cache.NewLRUCache[core.MonthOverview](16, time.Minute), nil)
	t.Cleanup(func() { svc.Close() })

	_, err = svc.AddCategoryBudget(ctx, "Food", dec("100"))
	require.NoError(t, err)

	store.armed.Store(true)
	readErr := make(chan error, 1)
	go func() {
		_, err := svc.MonthOverview(ctx, "05/2025")
		readErr <- err
	}()

	<-store.loaded
	_, err = svc.AddExpense(ctx, "Food", dec("40"), date(t, "2025-05-02"))
	require.NoError(t, err)
	close(store.release)
	require.NoError(t, <-readErr)

	total, err := svc.GetTotalExpensesForMonth(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, total.Equal(dec("40")), "total after write = %s", total)

	usage, err := svc.GetAllCategoryBudgetsWithUsage(ctx, "05/2025")
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.True(t, usage[0].Used.Equal(dec("40")), "food used = %s", usage[0].Used)
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"budget/internal/core"
)

func TestSchema_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budget.db")

	repo, err := NewSQLiteRepository(ctx, path, nil)
	require.NoError(t, err)
	_, err = repo.AddMonthlyBudget(ctx, "05/2025", dec("100"))
	require.NoError(t, err)
	require.NoError(t, repo.schema.Initialize(ctx))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(ctx, path, nil)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.GetMonthlyBudget(ctx, "05/2025")
	require.NoError(t, err)
	require.True(t, got.Equal(dec("100")), "data must survive reopening at the same version")

	version, dirty, err := repo.schema.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, SchemaVersion, version)
}

func TestSchema_VersionChangeDropsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budget.db")

	repo, err := NewSQLiteRepository(ctx, path, nil)
	require.NoError(t, err)
	_, err = repo.AddMonthlyBudget(ctx, "05/2025", dec("100"))
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx, `UPDATE schema_migrations SET version = 99`)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(ctx, path, nil)
	require.NoError(t, err)
	defer repo.Close()

	months, err := repo.GetAllBudgetMonths(ctx)
	require.NoError(t, err)
	require.Empty(t, months)

	version, _, err := repo.schema.Version()
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, version)
}

func TestSchema_ResetKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.AddCategoryBudget(ctx, core.Food, dec("100"))
	require.NoError(t, err)
	_, err = repo.AddExpense(ctx, core.Food, dec("1"), core.NewDate(2025, 1, 1))
	require.NoError(t, err)

	require.NoError(t, repo.ResetSchema(ctx))

	n, err := repo.CountExpenses(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	budgets, err := repo.GetAllCategoryBudgets(ctx)
	require.NoError(t, err)
	require.Empty(t, budgets)

	_, err = repo.AddExpense(ctx, core.Food, dec("1"), core.NewDate(2025, 1, 1))
	require.ErrorIs(t, err, core.ErrUnknownCategory)
}

func TestForeignKeysEnabledOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	on, err := repo.queries.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	require.True(t, on)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"budget/internal/core"
	"budget/internal/log"
)

const driverName = "sqlite"

// DSN builds the connection string for path. Foreign keys are switched on
// per connection because SQLite leaves them off by default.
func DSN(path string) string {
	return "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)"
}

// SQLiteRepository is the record store over monthly budgets, category
// budgets and expenses. It owns a single database handle shared by every
// caller; Close releases it.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  *SchemaManager
	logger  *log.Logger
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath,
// verifies foreign key enforcement and brings the schema to SchemaVersion.
func NewSQLiteRepository(ctx context.Context, dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	queries := New(db)
	on, err := queries.ForeignKeysEnabled(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("check foreign keys: %w", err)
	}
	if !on {
		db.Close()
		return nil, errors.New("sqlite foreign key enforcement is disabled")
	}

	schema := NewSchemaManager(dsn, logger)
	if err := schema.Ensure(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: queries,
		schema:  schema,
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}

	repo.logger.InfoContext(ctx, "SQLite repository opened", log.FieldDBPath, dbPath)
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ResetSchema wipes every table through the schema upgrade path. No other
// operation may run concurrently.
func (r *SQLiteRepository) ResetSchema(ctx context.Context) error {
	version, _, err := r.schema.Version()
	if err != nil {
		return err
	}
	return r.schema.Upgrade(ctx, version, SchemaVersion)
}

// AddMonthlyBudget stores the budget for month. Re-adding a month fails with
// core.ErrDuplicateKey and leaves the stored value untouched.
func (r *SQLiteRepository) AddMonthlyBudget(ctx context.Context, month core.MonthKey, amount decimal.Decimal) (int64, error) {
	key, err := core.ParseMonthKey(string(month))
	if err != nil {
		return 0, err
	}
	b := core.MonthlyBudget{Month: key, Amount: amount}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	id, err := r.queries.CreateMonthlyBudget(ctx, string(key), amount.InexactFloat64())
	if err != nil {
		return 0, mapError("create monthly budget", err)
	}

	r.logger.InfoContext(ctx, "Monthly budget saved",
		log.FieldID, id,
		log.FieldMonth, key,
		log.FieldAmount, amount.String())
	return id, nil
}

// GetMonthlyBudget returns zero when no budget was set for month.
func (r *SQLiteRepository) GetMonthlyBudget(ctx context.Context, month core.MonthKey) (decimal.Decimal, error) {
	budget, err := r.queries.GetMonthlyBudget(ctx, string(month))
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, mapError("get monthly budget", err)
	}
	return decimal.NewFromFloat(budget), nil
}

// GetAllBudgetMonths lists budgeted months by descending string order,
// which is not chronological across years.
func (r *SQLiteRepository) GetAllBudgetMonths(ctx context.Context) ([]core.MonthKey, error) {
	rows, err := r.queries.GetBudgetMonths(ctx)
	if err != nil {
		return nil, mapError("get budget months", err)
	}
	months := make([]core.MonthKey, len(rows))
	for i, m := range rows {
		months[i] = core.MonthKey(m)
	}
	return months, nil
}

// AddCategoryBudget stores the limit for category; a category can only be
// budgeted once.
func (r *SQLiteRepository) AddCategoryBudget(ctx context.Context, category core.Category, limit decimal.Decimal) (int64, error) {
	b := core.CategoryBudget{Category: category, Limit: limit}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	id, err := r.queries.CreateCategoryBudget(ctx, string(category), limit.InexactFloat64())
	if err != nil {
		return 0, mapError("create category budget", err)
	}

	r.logger.InfoContext(ctx, "Category budget saved",
		log.FieldID, id,
		log.FieldCategory, category,
		log.FieldAmount, limit.String())
	return id, nil
}

func (r *SQLiteRepository) GetAllCategoryBudgets(ctx context.Context) (map[core.Category]decimal.Decimal, error) {
	rows, err := r.queries.GetCategoryBudgets(ctx)
	if err != nil {
		return nil, mapError("get category budgets", err)
	}
	budgets := make(map[core.Category]decimal.Decimal, len(rows))
	for _, row := range rows {
		budgets[core.Category(row.Category)] = decimal.NewFromFloat(row.BudgetLimit)
	}
	return budgets, nil
}

// DeleteCategoryBudget removes the category budget; its expenses go with it
// through the foreign key cascade.
func (r *SQLiteRepository) DeleteCategoryBudget(ctx context.Context, category core.Category) error {
	n, err := r.queries.DeleteCategoryBudget(ctx, string(category))
	if err != nil {
		return mapError("delete category budget", err)
	}
	if n == 0 {
		return fmt.Errorf("delete category budget %q: %w", category, core.ErrNotFound)
	}

	r.logger.InfoContext(ctx, "Category budget deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldCategory, category)
	return nil
}

// AddExpense records an expense. A zero date means today and an empty
// category is stored as NULL.
func (r *SQLiteRepository) AddExpense(ctx context.Context, category core.Category, amount decimal.Decimal, date core.Date) (int64, error) {
	if date.IsEmpty() {
		date = core.DateOf(r.now())
	}
	e := core.Expense{Category: category, Amount: amount, Date: date}
	if err := e.Validate(); err != nil {
		return 0, err
	}

	id, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Category: sql.NullString{String: string(category), Valid: category != ""},
		Amount:   amount.InexactFloat64(),
		Date:     date.String(),
	})
	if err != nil {
		return 0, mapError("create expense", err)
	}

	fields := log.NewFields().
		WithOperation(log.OpCreate).
		WithExpense(string(category), amount.String(), date.String())
	fields[log.FieldID] = id
	r.logger.InfoContext(ctx, "Expense saved", fields.ToSlice()...)
	return id, nil
}

// GetExpensesForMonth returns the month's expenses ordered by date. Rows whose
// stored date does not parse are skipped.
func (r *SQLiteRepository) GetExpensesForMonth(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	rows, err := r.queries.GetExpensesByMonth(ctx, string(month))
	if err != nil {
		return nil, mapError("get expenses by month", err)
	}

	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		date, err := core.ParseDate(row.Date)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping expense with malformed date",
				log.FieldID, row.ID,
				log.FieldDate, row.Date)
			continue
		}
		expenses = append(expenses, core.Expense{
			ID:       row.ID,
			Category: core.Category(row.Category.String),
			Amount:   decimal.NewFromFloat(row.Amount),
			Date:     date,
		})
	}
	return expenses, nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, mapError("count expenses", err)
	}
	return n, nil
}

// mapError turns driver errors into domain errors. Constraint violations keep
// only the domain meaning; everything else is a storage failure wrapping the cause.
func mapError(op string, err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, core.ErrUnknownCategory)
		}
		if sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			msg := sqliteErr.Error()
			switch {
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%s: %w", op, core.ErrUnknownCategory)
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%s: %w", op, core.ErrDuplicateKey)
			}
		}
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageFailure, err)
}

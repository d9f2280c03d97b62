package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type CategoryBudgetRow struct {
	Category    string
	BudgetLimit float64
}

type ExpenseRow struct {
	ID       int64
	Category sql.NullString
	Amount   float64
	Date     string
}

type CreateExpenseParams struct {
	Category sql.NullString
	Amount   float64
	Date     string
}

const createMonthlyBudget = `INSERT INTO monthly_budget (month, budget) VALUES (?, ?)`

func (q *Queries) CreateMonthlyBudget(ctx context.Context, month string, budget float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, createMonthlyBudget, month, budget)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getMonthlyBudget = `SELECT budget FROM monthly_budget WHERE month = ?`

func (q *Queries) GetMonthlyBudget(ctx context.Context, month string) (float64, error) {
	var budget float64
	err := q.db.QueryRowContext(ctx, getMonthlyBudget, month).Scan(&budget)
	return budget, err
}

const getBudgetMonths = `SELECT month FROM monthly_budget ORDER BY month DESC`

func (q *Queries) GetBudgetMonths(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getBudgetMonths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var month string
		if err := rows.Scan(&month); err != nil {
			return nil, err
		}
		months = append(months, month)
	}
	return months, rows.Err()
}

const createCategoryBudget = `INSERT INTO category_budget (category, budget_limit) VALUES (?, ?)`

func (q *Queries) CreateCategoryBudget(ctx context.Context, category string, limit float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, createCategoryBudget, category, limit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getCategoryBudgets = `SELECT category, budget_limit FROM category_budget`

func (q *Queries) GetCategoryBudgets(ctx context.Context) ([]CategoryBudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoryBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CategoryBudgetRow
	for rows.Next() {
		var i CategoryBudgetRow
		if err := rows.Scan(&i.Category, &i.BudgetLimit); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteCategoryBudget = `DELETE FROM category_budget WHERE category = ?`

func (q *Queries) DeleteCategoryBudget(ctx context.Context, category string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategoryBudget, category)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createExpense = `INSERT INTO expenses (category, amount, date) VALUES (?, ?, ?)`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense, arg.Category, arg.Amount, arg.Date)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Month matching extracts MM/yyyy from the stored date rather than comparing
// a date range.
const getExpensesByMonth = `SELECT id, category, amount, date FROM expenses
WHERE strftime('%m/%Y', date) = ?
ORDER BY date, id`

func (q *Queries) GetExpensesByMonth(ctx context.Context, month string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, getExpensesByMonth, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(&i.ID, &i.Category, &i.Amount, &i.Date); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countExpenses = `SELECT COUNT(*) FROM expenses`

func (q *Queries) CountExpenses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpenses).Scan(&n)
	return n, err
}

const foreignKeysEnabled = `PRAGMA foreign_keys`

func (q *Queries) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var on int
	err := q.db.QueryRowContext(ctx, foreignKeysEnabled).Scan(&on)
	return on == 1, err
}

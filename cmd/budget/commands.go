package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/services"
)

var errUsage = errors.New("usage")

type command struct {
	name    string
	args    string
	summary string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error
}

var commands []command

func init() {
	commands = []command{
		{"set-month", "MM/yyyy AMOUNT", "Set the overall budget for a month", 2, 2, setMonth},
		{"set-category", "NAME LIMIT", "Set the monthly limit for a category", 2, 2, setCategory},
		{"delete-category", "NAME", "Delete a category budget and all its expenses", 1, 1, deleteCategory},
		{"add-expense", "NAME AMOUNT [yyyy-MM-dd]", "Record an expense (date defaults to today)", 2, 3, addExpense},
		{"expenses", "MM/yyyy", "List the expenses of a month", 1, 1, listExpenses},
		{"report", "[MM/yyyy]", "Show budget progress and category usage", 0, 1, report},
		{"months", "", "List months that have a budget", 0, 0, listMonths},
		{"categories", "", "List categories and their limits", 0, 0, listCategories},
		{"stats", "", "Show record counts", 0, 0, stats},
		{"reset", "-force", "Delete all data and recreate the database", 0, 1, reset},
	}
}

func commandHelp() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s %s\t%s\n", c.name, c.args, c.summary)
	}
	fmt.Fprint(w, serveUsage)
	w.Flush()
	return b.String()
}

// dispatch runs the command named by args[0].
func dispatch(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		rest := args[1:]
		if len(rest) < c.minArgs || len(rest) > c.maxArgs {
			return fmt.Errorf("%w: %s %s", errUsage, c.name, c.args)
		}
		return c.run(ctx, svc, rest, out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func setMonth(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[1], err)
	}
	if _, err := svc.AddMonthlyBudget(ctx, args[0], amount); err != nil {
		return err
	}
	fmt.Fprintf(out, "Budget for %s set to %s\n", args[0], money(amount))
	return nil
}

func setCategory(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	limit, err := core.ParseAmount(args[1])
	if err != nil {
		return fmt.Errorf("limit %q: %w", args[1], err)
	}
	if _, err := svc.AddCategoryBudget(ctx, args[0], limit); err != nil {
		return err
	}
	category, _ := core.ParseCategory(args[0])
	fmt.Fprintf(out, "Limit for %s set to %s\n", category, money(limit))
	return nil
}

func deleteCategory(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	if err := svc.DeleteCategoryBudget(ctx, args[0]); err != nil {
		return err
	}
	category, _ := core.ParseCategory(args[0])
	fmt.Fprintf(out, "Deleted %s and its expenses\n", category)
	return nil
}

func addExpense(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return fmt.Errorf("amount %q: %w", args[1], err)
	}
	var date core.Date
	if len(args) == 3 {
		if date, err = core.ParseDate(args[2]); err != nil {
			return fmt.Errorf("date %q: %w", args[2], err)
		}
	}
	id, err := svc.AddExpense(ctx, args[0], amount, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded expense #%d: %s\n", id, money(amount))
	return nil
}

func listExpenses(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	expenses, err := svc.GetExpensesForMonth(ctx, args[0])
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Fprintf(out, "No expenses for %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tAMOUNT\t")
	total := decimal.Zero
	for _, e := range expenses {
		category := e.Category.String()
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", e.ID, e.Date, category, money(e.Amount))
		total = total.Add(e.Amount)
	}
	fmt.Fprintf(w, "\t\tTOTAL\t%s\t\n", money(total))
	return w.Flush()
}

func report(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	month := core.CurrentMonthKey(time.Now()).String()
	if len(args) == 1 {
		month = args[0]
	}
	overview, err := svc.MonthOverview(ctx, month)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Month:    %s\n", overview.Month)
	fmt.Fprintf(out, "Budget:   %s\n", money(overview.Budget))
	fmt.Fprintf(out, "Spent:    %s\n", money(overview.Total))
	fmt.Fprintf(out, "Progress: %d%%\n", overview.Progress)
	if len(overview.Categories) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CATEGORY\tLIMIT\tUSED\tREMAINING\tPROGRESS\t")
	for _, u := range overview.Categories {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t\n",
			u.Category, money(u.Limit), money(u.Used), money(u.Remaining()), u.Progress())
	}
	return w.Flush()
}

func listMonths(ctx context.Context, svc *services.BudgetService, _ []string, out io.Writer) error {
	months, err := svc.AvailableMonths(ctx)
	if err != nil {
		return err
	}
	for _, m := range months {
		fmt.Fprintln(out, m)
	}
	return nil
}

func listCategories(ctx context.Context, svc *services.BudgetService, _ []string, out io.Writer) error {
	limits, err := svc.GetAllCategoryBudgets(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tLIMIT")
	for _, c := range core.Categories() {
		limit := "-"
		if l, ok := limits[c]; ok {
			limit = money(l)
		}
		fmt.Fprintf(w, "%s\t%s\n", c, limit)
	}
	return w.Flush()
}

func stats(ctx context.Context, svc *services.BudgetService, _ []string, out io.Writer) error {
	count, err := svc.CountExpenses(ctx)
	if err != nil {
		return err
	}
	months, err := svc.GetAllBudgetMonths(ctx)
	if err != nil {
		return err
	}
	limits, err := svc.GetAllCategoryBudgets(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Expenses:\t%d\n", count)
	fmt.Fprintf(w, "Budgeted months:\t%d\n", len(months))
	fmt.Fprintf(w, "Budgeted categories:\t%d\n", len(limits))
	return w.Flush()
}

func reset(ctx context.Context, svc *services.BudgetService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "confirm data removal")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: reset -force", errUsage)
	}
	if !*force {
		return fmt.Errorf("%w: reset deletes all data, pass -force to confirm", errUsage)
	}
	if err := svc.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "All data removed")
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

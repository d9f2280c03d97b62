package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
)

type monthlyBudgetResponse struct {
	Month  string `json:"month"`
	Amount string `json:"amount"`
}

type categoryBudgetResponse struct {
	Category string `json:"category"`
	Limit    string `json:"limit"`
}

type usageResponse struct {
	Category  string `json:"category"`
	Limit     string `json:"limit"`
	Used      string `json:"used"`
	Remaining string `json:"remaining"`
	Progress  int    `json:"progress"`
}

type overviewResponse struct {
	Month      string          `json:"month"`
	Budget     string          `json:"budget"`
	Total      string          `json:"total"`
	Progress   int             `json:"progress"`
	Categories []usageResponse `json:"categories"`
}

type expenseResponse struct {
	ID       int64  `json:"id"`
	Category string `json:"category,omitempty"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
}

type expensesResponse struct {
	Month    string            `json:"month"`
	Total    string            `json:"total"`
	Expenses []expenseResponse `json:"expenses"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// monthParam reads the month query parameter, defaulting to the current month.
func (s *Server) monthParam(r *http.Request) string {
	if m := sanitizeInput(r.URL.Query().Get("month")); m != "" {
		return m
	}
	return core.CurrentMonthKey(s.now()).String()
}

func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			PayloadTooLargeError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)).Write(w)
			return nil, false
		}
		BadRequestError("invalid request body").Write(w)
		return nil, false
	}
	return p, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	resp, errorType := errorResponseFor(err)
	fields := log.NewFields().WithError(err).WithErrorType(errorType)
	logger := log.FromContext(r.Context())
	if errorType == log.ErrorTypeInternal {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.svc.AvailableMonths(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, m.String())
	}
	NewResponse().JSON(map[string][]string{"months": out}).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.svc.MonthOverview(r.Context(), s.monthParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := overviewResponse{
		Month:      overview.Month.String(),
		Budget:     money(overview.Budget),
		Total:      money(overview.Total),
		Progress:   overview.Progress,
		Categories: make([]usageResponse, 0, len(overview.Categories)),
	}
	for _, u := range overview.Categories {
		resp.Categories = append(resp.Categories, usageResponse{
			Category:  u.Category.String(),
			Limit:     money(u.Limit),
			Used:      money(u.Used),
			Remaining: money(u.Remaining()),
			Progress:  u.Progress(),
		})
	}
	NewResponse().JSON(resp).Write(w)
}

func (s *Server) handleGetMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	month := s.monthParam(r)
	amount, err := s.svc.GetMonthlyBudget(r.Context(), month)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().JSON(monthlyBudgetResponse{Month: month, Amount: money(amount)}).Write(w)
}

func (s *Server) handleCreateMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.svc.AddMonthlyBudget(r.Context(), p.Get("month"), amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	limits, err := s.svc.GetAllCategoryBudgets(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	categories := make([]core.Category, 0, len(limits))
	for c := range limits {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Rank() < categories[j].Rank() })

	out := make([]categoryBudgetResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryBudgetResponse{Category: c.String(), Limit: money(limits[c])})
	}
	NewResponse().JSON(map[string][]categoryBudgetResponse{"categories": out}).Write(w)
}

func (s *Server) handleCreateCategoryBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	limit, err := core.ParseAmount(p.Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.svc.AddCategoryBudget(r.Context(), p.Get("category"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

func (s *Server) handleDeleteCategoryBudget(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if unescaped, err := url.PathUnescape(category); err == nil {
		category = unescaped
	}
	if err := s.svc.DeleteCategoryBudget(r.Context(), category); err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month := s.monthParam(r)
	expenses, err := s.svc.GetExpensesForMonth(r.Context(), month)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := expensesResponse{Month: month, Expenses: make([]expenseResponse, 0, len(expenses))}
	total := decimal.Zero
	for _, e := range expenses {
		resp.Expenses = append(resp.Expenses, expenseResponse{
			ID:       e.ID,
			Category: e.Category.String(),
			Amount:   money(e.Amount),
			Date:     e.Date.String(),
		})
		total = total.Add(e.Amount)
	}
	resp.Total = money(total)
	NewResponse().JSON(resp).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var date core.Date
	if raw := p.Get("date"); raw != "" {
		if date, err = core.ParseDate(raw); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	id, err := s.svc.AddExpense(r.Context(), p.Get("category"), amount, date)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(createdResponse{ID: id}).Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.CountExpenses(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	NewResponse().JSON(map[string]int64{"expenses": count}).Write(w)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"budget/internal/log"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// Server serves the budget JSON API.
type Server struct {
	http.Server
	svc    *services.BudgetService
	tracer *trace.Middleware
	logger *log.Logger
	now    func() time.Time
}

// NewServer builds a server listening on addr. Every route runs behind
// tracing, panic recovery and security headers middleware.
func NewServer(addr string, svc *services.BudgetService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		svc:    svc,
		tracer: trace.NewMiddleware(logger),
		logger: logger.WithComponent(log.ComponentHTTP),
		now:    time.Now,
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(headers.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/months", s.handleMonths)
		r.Get("/overview", s.handleOverview)
		r.Get("/stats", s.handleStats)

		r.Get("/budgets/monthly", s.handleGetMonthlyBudget)
		r.Post("/budgets/monthly", s.handleCreateMonthlyBudget)

		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategoryBudget)
		r.Delete("/categories/{category}", s.handleDeleteCategoryBudget)

		r.Get("/expenses", s.handleListExpenses)
		r.Post("/expenses", s.handleCreateExpense)
	})

	s.Addr = addr
	s.Handler = r
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16 // 64KB
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening",
			log.FieldOperation, log.OpStartup,
			log.FieldAddr, s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.InfoContext(shutdownCtx, "HTTP server shutting down",
		log.FieldOperation, log.OpShutdown,
		"requests_served", s.tracer.TotalRequests())
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// Package cli provides common CLI initialization utilities shared by the
// budget commands: environment loading, logging and service wiring.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// SetupLogger builds the application logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(cfg.LoggerConfig())
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment, applies
// overrides (command-line flags) and validates the result.
func LoadAndValidateConfig(overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the wired budget service and the resources behind it.
type App struct {
	Service   *services.BudgetService
	Caches    *cache.Manager
	Overviews *cache.LRUCache[core.MonthOverview]
	Logger    *log.Logger
}

// OpenBudgetService opens the SQLite store at cfg.DBPath, ensures its schema
// and wraps it in a BudgetService with a month overview cache.
func OpenBudgetService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	repo, err := storage.NewSQLiteRepository(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize SQLite repository",
			log.FieldError, err,
			log.FieldDBPath, cfg.DBPath)
		return nil, fmt.Errorf("open budget store: %w", err)
	}

	overviews := cache.NewLRUCache[core.MonthOverview](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(overviews)
	caches.StartCleanup(cfg.ReportCacheTTL)

	return &App{
		Service:   services.NewBudgetService(repo, overviews, logger),
		Caches:    caches,
		Overviews: overviews,
		Logger:    logger,
	}, nil
}

// Close stops cache cleanup, logs overview cache stats and closes the store.
func (a *App) Close() error {
	a.Caches.Stop()
	if a.Overviews != nil {
		stats := a.Overviews.Stats()
		a.Logger.Debug("Overview cache stats",
			log.FieldCacheHits, stats.Hits,
			log.FieldCacheMiss, stats.Misses,
			log.FieldCount, stats.Size)
	}
	return a.Service.Close()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// WithTimeout bounds a single command run.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

const version = "1.0.0"

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite database (overrides BUDGET_DB_PATH)")
	envFile := flag.String("env", ".env", "Optional .env file to load before reading the environment")
	timeout := flag.Duration("timeout", 30*time.Second, "Maximum time a command may run, ignored by serve (0 disables)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `budget - personal monthly budget tracker

Usage:
  budget [flags] <command> [args]

Commands:
%s
Flags:
`, commandHelp())
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  BUDGET_DB_PATH      Database file (default ./data/budget.db)
  BUDGET_HTTP_ADDR    Listen address for serve (default 127.0.0.1:8081)
  LOG_LEVEL           debug, info, warn or error (default info)
  LOG_FORMAT          text or json (default text)
  REPORT_CACHE_SIZE   Cached month overviews (default 64)
  REPORT_CACHE_TTL    Lifetime of a cached overview (default 5m)
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("budget %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: a command is required")
		flag.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile(*envFile)

	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *dbPath != "" {
			c.DBPath = *dbPath
		}
	})
	if err != nil {
		fatalf("%v", err)
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentCLI)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	app, err := cli.OpenBudgetService(ctx, cfg, logger)
	if err != nil {
		fatalf("%v", err)
	}

	if flag.Arg(0) == "serve" {
		err = serve(ctx, app, cfg, flag.Args()[1:])
	} else {
		cmdCtx, cancel := cli.WithTimeout(ctx, *timeout)
		err = dispatch(cmdCtx, app.Service, flag.Args(), os.Stdout)
		cancel()
	}
	if closeErr := app.Close(); closeErr != nil {
		logger.Error("Failed to close budget store", log.FieldError, closeErr)
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			flag.Usage()
			os.Exit(2)
		}
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"budget/internal/cli"
	"budget/internal/config"
	apphttp "budget/internal/http"
)

const serveUsage = "  serve [-addr host:port]\tServe the JSON API until interrupted\n" +
	"  \tWrites from other processes show up once cached overviews expire (REPORT_CACHE_TTL)\n"

// serve runs the HTTP API until ctx is cancelled.
func serve(ctx context.Context, app *cli.App, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: serve [-addr host:port]", errUsage)
	}

	srv := apphttp.NewServer(*addr, app.Service, app.Logger)
	return srv.Run(ctx, 10*time.Second)
}

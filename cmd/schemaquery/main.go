package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schemaquery/schemaquery/internal/cli/schemaquery"
	"github.com/schemaquery/schemaquery/internal/config"
	"github.com/schemaquery/schemaquery/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("schemaquery")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stderr)
	options, err := schemaquery.NewOptions(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}
	options.Stdout = os.Stdout
	options.Stderr = os.Stderr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := schemaquery.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

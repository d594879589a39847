package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"safed/useradmin/internal/app"
	"safed/useradmin/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("create app", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("run app", "error", err)
		os.Exit(1)
	}
}

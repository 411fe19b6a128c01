package main

import (
	"context"
	"log/slog"
	"os"

	"go-fileops/internal/app"
	"go-fileops/internal/config"
	"go-fileops/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info")
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel)

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

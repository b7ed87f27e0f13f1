package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wsprobe/internal/config"
	"wsprobe/internal/echo"
	"wsprobe/internal/infrastructure"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := echo.NewServer(cfg.Echo, logger)
	if err := server.Run(ctx); err != nil {
		logger.Error("Echo server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

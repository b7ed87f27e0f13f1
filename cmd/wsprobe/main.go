package main

import (
	"context"
	"log/slog"
	"os"

	"wsprobe/internal/config"
	"wsprobe/internal/infrastructure"
	"wsprobe/internal/probe"
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

	reporter := probe.NewReporter(os.Stdout)
	session := probe.NewSession(cfg.Probe, reporter, logger)

	if err := session.Run(context.Background()); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"ResearchHarvester/internal/app"
	"ResearchHarvester/internal/config"
	"ResearchHarvester/internal/domain"
	"ResearchHarvester/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.Topics) == 0 {
		logger.Error("no topics configured")
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	report := application.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("cannot write report", "error", err)
		os.Exit(1)
	}

	if report.Status == domain.BatchDeadlineExceeded {
		os.Exit(2)
	}
}

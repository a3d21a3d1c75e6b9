package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/config"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/logging"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/server"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(context.Background(), cfg, true)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the PMAI server.
//
// Its job is deliberately small: build the logger, load configuration, hand
// both to the server package, and exit non-zero on failure. All real logic
// lives in internal/.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/magami/pmai/internal/config"
	"github.com/magami/pmai/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file (optional; env vars override)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

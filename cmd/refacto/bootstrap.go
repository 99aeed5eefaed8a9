package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/refacto/internal/app"
	"github.com/felixgeelhaar/refacto/internal/config"
)

// bootstrap loads configuration, sets up logging and wires the app. The
// returned cleanup closes both.
func bootstrap(stderrLevel slog.Level) (*app.App, func(), error) {
	refactoDir, err := config.EnsureRefactoDir()
	if err != nil {
		return nil, nil, fmt.Errorf("ensure refacto dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := parseLogLevel(cfg.LogLevel)
	if stderrLevel < level {
		stderrLevel = level
	}
	logFile, err := setupLogging(refactoDir, level, stderrLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("setup logging: %w", err)
	}

	a, err := app.New(app.Options{Config: cfg})
	if err != nil {
		logFile.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			slog.Warn("close app", "error", err)
		}
		logFile.Close()
	}
	return a, cleanup, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging writes JSON logs to ~/.refacto/logs/refacto.log at level and
// text logs to stderr at stderrLevel. Interactive commands keep stderr quiet.
func setupLogging(refactoDir string, level, stderrLevel slog.Level) (*os.File, error) {
	logPath := filepath.Join(refactoDir, "logs", "refacto.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	handler := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{
				Level: level,
			}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: stderrLevel,
			}),
		},
	}

	slog.SetDefault(slog.New(handler))

	return logFile, nil
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

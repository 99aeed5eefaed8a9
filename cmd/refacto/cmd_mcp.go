package main

import (
	"fmt"
	"log/slog"

	mcpserver "github.com/felixgeelhaar/refacto/internal/mcp"
)

// cmdMCP starts the MCP server on stdio, or over HTTP with --http <addr>
func cmdMCP(args []string) error {
	var addr string
	if len(args) > 0 {
		if args[0] != "--http" || len(args) < 2 {
			return fmt.Errorf("usage: refacto mcp [--http <addr>]")
		}
		addr = args[1]
	}

	// stdio carries the protocol, so keep stderr quiet there
	stderrLevel := slog.LevelWarn
	if addr != "" {
		stderrLevel = slog.LevelInfo
	}
	a, cleanup, err := bootstrap(stderrLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		App:     a,
		Version: Version,
	})

	ctx, cancel := signalContext()
	defer cancel()

	if addr != "" {
		slog.Info("mcp server starting", "transport", "http", "addr", addr, "backend", a.Config().Backend.URL)
		return mcpSrv.ServeHTTP(ctx, addr)
	}
	slog.Info("mcp server starting", "transport", "stdio", "backend", a.Config().Backend.URL)
	return mcpSrv.ServeStdio(ctx)
}

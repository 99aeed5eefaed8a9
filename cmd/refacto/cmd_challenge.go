package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/refacto/internal/config"
	"github.com/felixgeelhaar/refacto/internal/domain"
)

// cmdChallenge starts an interactive challenge session
func cmdChallenge(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("task id required (usage: refacto challenge <id> [refactor|scratch])")
	}
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}
	mode := domain.ModeRefactor
	if len(args) > 1 {
		if mode, err = domain.ParseMode(args[1]); err != nil {
			return err
		}
	}

	a, cleanup, err := bootstrap(slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	refactoDir, err := config.RefactoDir()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	r := newREPL(a, os.Stdout, filepath.Join(refactoDir, "workspace"))
	if err := r.open(ctx, id, mode); err != nil {
		return err
	}
	if greeting := a.Chat.Transcript(); len(greeting) > 0 {
		fmt.Printf("assistant: %s\n", greeting[0].Content)
	}
	fmt.Println("Type 'help' for commands.")

	return r.run(ctx, os.Stdin)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/refacto/internal/config"
)

// cmdConfig shows the configuration, or writes the defaults with "init"
func cmdConfig(args []string) error {
	if len(args) > 0 && args[0] == "init" {
		return cmdConfigInit()
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Refacto Configuration")

	fmt.Println("\nBackend:")
	fmt.Printf("  url: %s\n", cfg.Backend.URL)
	fmt.Printf("  timeout: %ds\n", cfg.Backend.TimeoutSeconds)

	fmt.Println("\nResilience:")
	fmt.Printf("  circuit_breaker: %t\n", cfg.Resilience.CircuitBreaker)
	fmt.Printf("  rate_limit: %t (%d/s)\n", cfg.Resilience.RateLimit, cfg.Resilience.RatePerSecond)
	fmt.Printf("  retry: %t (max %d attempts)\n", cfg.Resilience.Retry, cfg.Resilience.MaxAttempts)

	storePath, _ := cfg.StorePath()
	fmt.Println("\nStore:")
	fmt.Printf("  driver: %s\n", cfg.Store.Driver)
	fmt.Printf("  path: %s\n", storePath)

	fmt.Println("\nSession:")
	fmt.Printf("  pass_threshold: %d\n", cfg.Session.PassThreshold)
	fmt.Printf("  await_suggestion: %t\n", cfg.Session.AwaitSuggestion)

	fmt.Println("\nConcurrency:")
	fmt.Printf("  policy: %s\n", cfg.Concurrency.Policy)
	if cfg.Concurrency.Policy == config.PolicySerialize {
		fmt.Printf("  max_queue: %d\n", cfg.Concurrency.MaxQueue)
		fmt.Printf("  queue_timeout: %ds\n", cfg.Concurrency.QueueTimeoutSeconds)
	}

	fmt.Printf("\nlog_level: %s\n", cfg.LogLevel)

	refactoDir, _ := config.RefactoDir()
	fmt.Printf("\nConfig path: %s\n", filepath.Join(refactoDir, "config.yaml"))

	return nil
}

func cmdConfigInit() error {
	refactoDir, err := config.EnsureRefactoDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	configPath := filepath.Join(refactoDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Configuration already exists ✓")
		return nil
	}

	if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Wrote %s ✓\n", configPath)
	return nil
}

// cmdDoctor checks the local setup and the backend
func cmdDoctor() error {
	fmt.Println("Checking refacto setup...")

	allGood := true

	fmt.Print("Directory: ")
	refactoDir, err := config.RefactoDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(refactoDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'refacto config init')")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", refactoDir)
	}

	fmt.Print("Config:    ")
	if _, err := config.LoadLocalConfig(); err != nil {
		fmt.Printf("✗ %v\n", err)
		fmt.Println("\nSome checks failed.")
		return nil
	}
	fmt.Println("✓ loaded")

	a, cleanup, err := bootstrap(slog.LevelError)
	if err != nil {
		fmt.Printf("Store:     ✗ %v\n", err)
		fmt.Println("\nSome checks failed.")
		return nil
	}
	defer cleanup()

	fmt.Print("Store:     ")
	if n, err := a.Log.Len(); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Printf("✓ %s (%d feedback records)\n", a.Config().Store.Driver, n)
		if keys, err := a.Store.Keys(); err == nil && len(keys) > 0 {
			fmt.Printf("           keys: %s\n", strings.Join(keys, ", "))
		}
	}

	fmt.Print("Backend:   ")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Client.Ping(ctx); err != nil {
		fmt.Printf("✗ %s: %v\n", a.Client.BaseURL(), err)
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", a.Client.BaseURL())
	}

	if allGood {
		fmt.Println("\nAll checks passed!")
	} else {
		fmt.Println("\nSome checks failed.")
	}
	return nil
}

// Package app assembles the client from configuration: the durable store,
// the guarded backend client, the suggestion log, the catalog and the
// challenge and chat sessions.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/refacto/internal/backend"
	"github.com/felixgeelhaar/refacto/internal/catalog"
	"github.com/felixgeelhaar/refacto/internal/challenge"
	"github.com/felixgeelhaar/refacto/internal/chat"
	"github.com/felixgeelhaar/refacto/internal/config"
	"github.com/felixgeelhaar/refacto/internal/domain"
	"github.com/felixgeelhaar/refacto/internal/storage"
	"github.com/felixgeelhaar/refacto/internal/storage/local"
	"github.com/felixgeelhaar/refacto/internal/storage/memory"
	"github.com/felixgeelhaar/refacto/internal/storage/sqlite"
	"github.com/felixgeelhaar/refacto/internal/suggestion"
)

// App holds the wired services
type App struct {
	cfg *config.LocalConfig

	Client  *backend.Client
	Store   storage.KV
	Log     *suggestion.Log
	Catalog *catalog.Service
	Session *challenge.Session
	Chat    *chat.Session

	closers []func() error
}

// Options holds what New needs besides configuration
type Options struct {
	Config *config.LocalConfig

	// API replaces the HTTP backend, mainly for tests
	API backend.API

	// Logger receives resilience events (default: slog.Default())
	Logger *slog.Logger
}

// New wires an App from opts
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultLocalConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{cfg: cfg}

	store, closeStore, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	api := opts.API
	if api == nil {
		guard := backend.NewGuard(backend.GuardConfig{
			EnableCircuitBreaker: cfg.Resilience.CircuitBreaker,
			EnableRetry:          cfg.Resilience.Retry,
			EnableRateLimit:      cfg.Resilience.RateLimit,
			MaxAttempts:          cfg.Resilience.MaxAttempts,
			RatePerSecond:        cfg.Resilience.RatePerSecond,
			Logger:               logger,
		})
		a.Client = backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.URL,
			Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			Guard:   guard,
		})
		a.closers = append(a.closers, a.Client.Close)
		api = a.Client
	}

	a.Log = suggestion.NewLog(store)
	a.Catalog = catalog.NewService(api)
	a.Session = challenge.NewSession(api, a.Log, SessionOptions(cfg))
	a.closers = append(a.closers, a.Session.Close)
	a.Chat = chat.NewSession(api, a.Log, cfg.Session.Greeting)

	slog.Debug("app wired",
		"backend", cfg.Backend.URL,
		"store", cfg.Store.Driver,
		"policy", cfg.Concurrency.Policy)

	return a, nil
}

// SessionOptions maps configuration onto challenge options
func SessionOptions(cfg *config.LocalConfig) challenge.Options {
	policy := challenge.PolicyRace
	if cfg.Concurrency.Policy == config.PolicySerialize {
		policy = challenge.PolicySerialize
	}

	return challenge.Options{
		PassThreshold:   cfg.Session.PassThreshold,
		AwaitSuggestion: cfg.Session.AwaitSuggestion,
		Query: challenge.QueryOptions{
			Policy:       policy,
			MaxQueue:     cfg.Concurrency.MaxQueue,
			QueueTimeout: time.Duration(cfg.Concurrency.QueueTimeoutSeconds) * time.Second,
		},
	}
}

// OpenStore builds the configured durable store. The returned close func
// may be nil.
func OpenStore(cfg *config.LocalConfig) (storage.KV, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return memory.NewStore(), nil, nil

	case config.StoreSQLite:
		path, err := cfg.StorePath()
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite store: %w", err)
		}
		return sqlite.NewKVStore(db), db.Close, nil

	case config.StoreJSON, "":
		path, err := cfg.StorePath()
		if err != nil {
			return nil, nil, err
		}
		store, err := local.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open json store: %w", err)
		}
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.Store.Driver)
	}
}

// Config returns the configuration the app was built from
func (a *App) Config() *config.LocalConfig {
	return a.cfg
}

// Open loads a task into the challenge session and starts a fresh chat
func (a *App) Open(ctx context.Context, taskID int, mode domain.Mode) (*domain.Task, error) {
	task, err := a.Session.Open(ctx, taskID, mode)
	a.Chat.Reset()
	return task, err
}

// Continue advances past a Success outcome and starts a fresh chat
func (a *App) Continue(ctx context.Context) (*domain.Task, error) {
	task, err := a.Session.Continue(ctx)
	if errors.Is(err, challenge.ErrNoOutcome) {
		return nil, err
	}
	a.Chat.Reset()
	return task, err
}

// Close releases the session, store and backend resources
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

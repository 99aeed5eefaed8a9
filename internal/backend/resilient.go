package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// rateLimitKey is the single bucket shared by all backend calls
const rateLimitKey = "backend"

// rawResponse is what a guarded call yields. Client errors (4xx) are carried
// as a response rather than an error so they never trip the breaker.
type rawResponse struct {
	status int
	body   []byte
}

// GuardConfig holds configuration for the resilience guard
type GuardConfig struct {
	// EnableCircuitBreaker enables circuit breaker pattern
	EnableCircuitBreaker bool

	// EnableRetry enables retry with backoff
	EnableRetry bool

	// EnableRateLimit enables rate limiting
	EnableRateLimit bool

	// MaxAttempts for retry (default: 3)
	MaxAttempts int

	// RatePerSecond for rate limiting (default: 5)
	RatePerSecond int

	// Logger for resilience events
	Logger *slog.Logger
}

// DefaultGuardConfig returns defaults for backend calls. Retry is off because
// run and AI checks are not idempotent from the user's point of view.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		EnableCircuitBreaker: true,
		EnableRateLimit:      true,
		MaxAttempts:          3,
		RatePerSecond:        5,
	}
}

// Guard wraps backend round trips with fortify resilience patterns
type Guard struct {
	circuitBreaker circuitbreaker.CircuitBreaker[*rawResponse]
	retrier        retry.Retry[*rawResponse]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// NewGuard builds a guard from cfg
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{logger: cfg.Logger}

	if cfg.EnableCircuitBreaker {
		g.circuitBreaker = circuitbreaker.New[*rawResponse](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				if g.logger != nil {
					g.logger.Warn("backend circuit breaker state change",
						"from", from.String(),
						"to", to.String())
				}
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		g.retrier = retry.New[*rawResponse](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		g.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return g
}

// Execute runs op under the configured patterns
func (g *Guard) Execute(ctx context.Context, op func(context.Context) (*rawResponse, error)) (*rawResponse, error) {
	if g == nil {
		return op(ctx)
	}

	if g.rateLimit != nil && !g.rateLimit.Allow(ctx, rateLimitKey) {
		return nil, ErrRateLimited
	}

	operation := op
	if g.retrier != nil {
		operation = func(ctx context.Context) (*rawResponse, error) {
			return g.retrier.Do(ctx, op)
		}
	}

	if g.circuitBreaker != nil {
		return g.circuitBreaker.Execute(ctx, operation)
	}
	return operation(ctx)
}

// Close releases resources held by the guard
func (g *Guard) Close() error {
	if g != nil && g.rateLimit != nil {
		return g.rateLimit.Close()
	}
	return nil
}

// isRetryable reports whether a failed call may be attempted again
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch StatusCode(err) {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case 0:
		// transport failure, no response received
		return true
	}
	return false
}

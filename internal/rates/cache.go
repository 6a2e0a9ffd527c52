package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// ErrRateUnavailable is returned when the provider is unreachable (or
// the circuit is open) and no cached value exists for the requested
// pair. Callers must fail the surrounding operation; a missing rate is
// never defaulted to 1.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Config tunes the cache/resilience layer around the provider.
type Config struct {
	// TTL is how long a fetched rate is considered fresh.
	TTL time.Duration

	// MaxAttempts bounds provider calls per lookup, including the
	// first. Minimum 1.
	MaxAttempts int

	// RetryBackoff is the base delay between attempts; attempt n waits
	// n * RetryBackoff.
	RetryBackoff time.Duration

	// BreakerThreshold is the number of consecutive failed lookups
	// after which the circuit opens.
	BreakerThreshold uint32

	// BreakerCooldown is how long the circuit stays open before a
	// trial request is allowed again.
	BreakerCooldown time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:              5 * time.Minute,
		MaxAttempts:      3,
		RetryBackoff:     100 * time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  30 * time.Second,
	}
}

type cacheEntry struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Cache wraps a Provider with a time-bounded cache, bounded retry with
// backoff, and a circuit breaker that falls back to the last-known-good
// cached rate while the provider is unhealthy. Safe for concurrent use.
//
// Cache keys are the ordered pair (from, to); (to, from) is a distinct
// key and is never derived by inversion.
type Cache struct {
	provider Provider
	cfg      Config
	cb       *gobreaker.CircuitBreaker
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates the resilience layer around provider. logger and
// metrics may be nil.
func NewCache(provider Provider, cfg Config, logger *slog.Logger, metrics *Metrics) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	c := &Cache{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		entries:  make(map[string]cacheEntry),
	}

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange-rate",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("exchange rate circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.recordBreakerState(to)
		},
	})

	return c
}

// GetRate returns the rate for (from, to): one unit of from equals rate
// units of to. A fresh cached value is returned immediately; otherwise
// the provider is consulted under retry and circuit-breaker protection,
// with the stale cached value as fallback.
func (c *Cache) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + "/" + to

	if entry, ok := c.lookup(key); ok && time.Since(entry.fetchedAt) < c.cfg.TTL {
		c.metrics.recordHit()
		return entry.rate, nil
	}
	c.metrics.recordMiss()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetchWithRetry(ctx, from, to)
	})
	if err == nil {
		rate := result.(decimal.Decimal)
		c.storeEntry(key, rate)
		return rate, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("exchange rate circuit open, short-circuiting to fallback",
			"from", from, "to", to)
	} else {
		c.logger.Warn("exchange rate lookup failed",
			"from", from, "to", to, "error", err)
	}

	// Fall back to the last known good value for this exact key.
	if entry, ok := c.lookup(key); ok {
		c.metrics.recordFallback()
		c.logger.Warn("using cached exchange rate",
			"from", from, "to", to,
			"age", time.Since(entry.fetchedAt).String())
		return entry.rate, nil
	}

	return decimal.Zero, fmt.Errorf("%w for %s=>%s: %v", ErrRateUnavailable, from, to, err)
}

func (c *Cache) fetchWithRetry(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * c.cfg.RetryBackoff):
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			}
		}

		rate, err := c.provider.Fetch(ctx, from, to)
		if err == nil {
			return rate, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return decimal.Zero, lastErr
}

func (c *Cache) lookup(key string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *Cache) storeEntry(key string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{rate: rate, fetchedAt: time.Now()}
}

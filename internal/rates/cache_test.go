package rates

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider counts calls and returns scripted results per pair.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	rate  decimal.Decimal
	err   error
}

func (p *stubProvider) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return decimal.Zero, p.err
	}
	return p.rate, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) set(rate decimal.Decimal, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate, p.err = rate, err
}

func testConfig() Config {
	return Config{
		TTL:              time.Minute,
		MaxAttempts:      1,
		RetryBackoff:     time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
	}
}

func TestGetRateCachesFreshValue(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("1.10")}
	cache := NewCache(provider, testConfig(), nil, nil)
	ctx := context.Background()

	rate, err := cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	assert.Equal(t, 1, provider.callCount())

	// Within the TTL the provider is not consulted again.
	rate, err = cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	assert.Equal(t, 1, provider.callCount())
}

func TestGetRateExpiredEntryRefetches(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("1.10")}
	cfg := testConfig()
	cfg.TTL = 10 * time.Millisecond
	cache := NewCache(provider, cfg, nil, nil)
	ctx := context.Background()

	_, err := cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	provider.set(decimal.RequireFromString("1.20"), nil)

	rate, err := cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.20")))
	assert.Equal(t, 2, provider.callCount())
}

func TestGetRateDirectionalKeys(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("1.10")}
	cache := NewCache(provider, testConfig(), nil, nil)
	ctx := context.Background()

	_, err := cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)

	// The reversed pair is a distinct key, not the reciprocal.
	_, err = cache.GetRate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount())
}

func TestGetRateRetriesTransientFailure(t *testing.T) {
	provider := &flakyProvider{failures: 2, rate: decimal.RequireFromString("1.10")}
	cfg := testConfig()
	cfg.MaxAttempts = 3
	cache := NewCache(provider, cfg, nil, nil)

	rate, err := cache.GetRate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	assert.Equal(t, 3, provider.calls)
}

// flakyProvider fails the first n calls, then succeeds.
type flakyProvider struct {
	mu       sync.Mutex
	calls    int
	failures int
	rate     decimal.Decimal
}

func (p *flakyProvider) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return decimal.Zero, errors.New("connection reset")
	}
	return p.rate, nil
}

func TestBreakerOpensAndFallsBackToCachedRate(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("1.10")}
	cfg := testConfig()
	cfg.TTL = time.Nanosecond // every lookup goes to the provider
	cache := NewCache(provider, cfg, nil, nil)
	ctx := context.Background()

	// Seed the cache with one good value.
	rate, err := cache.GetRate(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))

	provider.set(decimal.Zero, errors.New("provider down"))

	// Three consecutive failures trip the breaker; each still serves
	// the stale cached rate.
	for i := 0; i < 3; i++ {
		rate, err = cache.GetRate(ctx, "EUR", "USD")
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	}
	callsWhenOpened := provider.callCount()

	// With the circuit open, lookups short-circuit to the fallback
	// without invoking the provider.
	for i := 0; i < 5; i++ {
		rate, err = cache.GetRate(ctx, "EUR", "USD")
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("1.10")))
	}
	assert.Equal(t, callsWhenOpened, provider.callCount())
}

func TestRateUnavailableWhenNoCachedValue(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	cache := NewCache(provider, testConfig(), nil, nil)

	_, err := cache.GetRate(context.Background(), "EUR", "USD")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestRateUnavailableWhileOpenAndNoCache(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider down")}
	cache := NewCache(provider, testConfig(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := cache.GetRate(ctx, "EUR", "USD")
		assert.ErrorIs(t, err, ErrRateUnavailable)
	}

	// Breaker is open now; the provider stops being invoked but the
	// error classification stays the same.
	before := provider.callCount()
	_, err := cache.GetRate(ctx, "EUR", "USD")
	assert.ErrorIs(t, err, ErrRateUnavailable)
	assert.Equal(t, before, provider.callCount())
}

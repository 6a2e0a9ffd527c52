package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Metrics instruments the rate cache. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	hits         prometheus.Counter
	misses       prometheus.Counter
	fallbacks    prometheus.Counter
	breakerState prometheus.Gauge
}

// NewMetrics creates and registers the rate cache collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_rate_cache_hits_total",
			Help: "Number of rate lookups served from the fresh cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_rate_cache_misses_total",
			Help: "Number of rate lookups that had to consult the provider.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exchange_rate_cache_fallbacks_total",
			Help: "Number of rate lookups served from a stale cached value.",
		}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exchange_rate_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.fallbacks, m.breakerState)
	return m
}

func (m *Metrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) recordFallback() {
	if m != nil {
		m.fallbacks.Inc()
	}
}

func (m *Metrics) recordBreakerState(state gobreaker.State) {
	if m == nil {
		return
	}
	switch state {
	case gobreaker.StateClosed:
		m.breakerState.Set(0)
	case gobreaker.StateHalfOpen:
		m.breakerState.Set(1)
	case gobreaker.StateOpen:
		m.breakerState.Set(2)
	}
}

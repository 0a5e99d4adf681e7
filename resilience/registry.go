package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/iris-se/iris/core"
)

// serviceConfigs holds per-service breaker tuning. Data sources that fail
// rarely but take long to recover (statistics, weather) get low thresholds
// and long timeouts; fast-moving sources (market data) are allowed more
// consecutive failures but retest sooner.
var serviceConfigs = map[string]struct {
	failureThreshold int
	timeout          time.Duration
}{
	"scb":             {failureThreshold: 3, timeout: 120 * time.Second},
	"omx":             {failureThreshold: 5, timeout: 60 * time.Second},
	"svenska_nyheter": {failureThreshold: 4, timeout: 90 * time.Second},
	"smhi":            {failureThreshold: 3, timeout: 180 * time.Second},
	"groq":            {failureThreshold: 5, timeout: 300 * time.Second},
	"xai":             {failureThreshold: 5, timeout: 300 * time.Second},
}

// Registry hands out one shared circuit breaker per named service,
// creating breakers lazily with the service's tuned configuration.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	logger   core.Logger
	metrics  MetricsCollector
	analyzer *ErrorAnalyzer
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the logger propagated to created breakers
func WithLogger(logger core.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector propagated to created breakers
func WithMetrics(metrics MetricsCollector) RegistryOption {
	return func(r *Registry) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers: make(map[string]*CircuitBreaker),
		logger:   &core.NoOpLogger{},
		metrics:  &noopMetrics{},
		analyzer: NewErrorAnalyzer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for the named service, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	config := DefaultConfig(name)
	if tuned, ok := serviceConfigs[name]; ok {
		config.FailureThreshold = tuned.failureThreshold
		config.TimeoutDuration = tuned.timeout
	}
	config.Logger = r.logger
	config.Metrics = r.metrics

	// Config is validated and non-nil here, so construction cannot fail.
	cb, _ := NewCircuitBreaker(config)
	r.breakers[name] = cb
	return cb
}

// Names returns the sorted names of all instantiated breakers
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statistics returns snapshots for every instantiated breaker, keyed by
// service name. Used by monitoring endpoints.
func (r *Registry) Statistics() map[string]Statistics {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	stats := make(map[string]Statistics, len(breakers))
	for _, cb := range breakers {
		stats[cb.Name()] = cb.Statistics()
	}
	return stats
}

// Analyze grades the recent failure history of the named service.
func (r *Registry) Analyze(name string) ErrorAnalysis {
	return r.analyzer.Analyze(name, r.Get(name).RecentFailures())
}

// Reset clears the named breaker back to closed, if it exists.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()
	if ok {
		cb.Reset()
	}
}

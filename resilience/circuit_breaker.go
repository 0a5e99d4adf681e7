package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iris-se/iris/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests until the timeout elapses
	StateOpen
	// StateHalfOpen allows probe requests to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// FailureRecord captures a single observed failure for statistics.
type FailureRecord struct {
	Timestamp time.Time
	ErrorKind string
	Message   string
	Service   string
}

// Config holds configuration for a circuit breaker. All fields are
// immutable once the breaker is constructed.
type Config struct {
	// Name identifies the guarded external service
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// TimeoutDuration is how long an open breaker blocks before probing
	TimeoutDuration time.Duration

	// RecoveryThreshold is the number of successes needed to close from half-open
	RecoveryThreshold int

	// MaxFailuresPerWindow caps the retained failure history
	MaxFailuresPerWindow int

	// WindowDuration is the sliding window for the failure history
	WindowDuration time.Duration

	// Logger for breaker events
	Logger core.Logger

	// Metrics collector for monitoring
	Metrics MetricsCollector
}

// DefaultConfig returns the default breaker configuration used when a
// service has no dedicated entry in the registry.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                 name,
		FailureThreshold:     5,
		TimeoutDuration:      60 * time.Second,
		RecoveryThreshold:    3,
		MaxFailuresPerWindow: 10,
		WindowDuration:       5 * time.Minute,
		Logger:               &core.NoOpLogger{},
		Metrics:              &noopMetrics{},
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.RecoveryThreshold < 1 {
		return fmt.Errorf("recovery threshold must be at least 1, got %d", c.RecoveryThreshold)
	}
	if c.TimeoutDuration <= 0 {
		return fmt.Errorf("timeout duration must be positive, got %v", c.TimeoutDuration)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window duration must be positive, got %v", c.WindowDuration)
	}
	if c.MaxFailuresPerWindow < 1 {
		return fmt.Errorf("max failures per window must be at least 1, got %d", c.MaxFailuresPerWindow)
	}
	return nil
}

// CircuitOpenError is returned when a call is rejected by an open breaker.
// It carries the last-failure timestamp and unwraps to
// core.ErrCircuitBreakerOpen for errors.Is comparisons.
type CircuitOpenError struct {
	Name        string
	LastFailure time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is open, last failure at %s",
		e.Name, e.LastFailure.Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error {
	return core.ErrCircuitBreakerOpen
}

// Statistics is a point-in-time, side-effect-free snapshot of a breaker.
type Statistics struct {
	Name           string     `json:"name"`
	State          string     `json:"state"`
	FailureCount   int        `json:"failure_count"`
	SuccessCount   int        `json:"success_count"`
	RecentFailures int        `json:"recent_failures"`
	LastFailure    *time.Time `json:"last_failure"`
	LastSuccess    *time.Time `json:"last_success"`
	FailureRate    float64    `json:"failure_rate"`
}

// CircuitBreaker is a per-service fault isolation state machine with a
// sliding-window failure history. One instance guards one named external
// service and is shared by all concurrent callers; all mutable state is
// protected by a single mutex.
type CircuitBreaker struct {
	config *Config

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time
	failureHistory  []FailureRecord
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config *Config) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig("default")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}

	config.Logger.Info("Circuit breaker created", map[string]interface{}{
		"operation":          "circuit_breaker_created",
		"name":               config.Name,
		"failure_threshold":  config.FailureThreshold,
		"recovery_threshold": config.RecoveryThreshold,
		"timeout_ms":         config.TimeoutDuration.Milliseconds(),
	})

	return cb, nil
}

// Name returns the identifier of the guarded service
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation only if the breaker currently allows it.
// When open, it fails fast with a CircuitOpenError without invoking the
// operation. Operation errors are observed (recorded) and returned to the
// caller unchanged; the breaker never retries internally.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func() error) error {
	cb.mu.Lock()
	if !cb.canAttempt() {
		lastFailure := cb.lastFailureTime
		cb.mu.Unlock()

		cb.config.Metrics.RecordRejection(cb.config.Name)
		cb.config.Logger.Warn("Circuit breaker rejected call", map[string]interface{}{
			"operation": "circuit_breaker_reject",
			"name":      cb.config.Name,
			"state":     StateOpen.String(),
		})
		return &CircuitOpenError{Name: cb.config.Name, LastFailure: lastFailure}
	}
	cb.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := operation()
	if err != nil {
		cb.recordFailure(err)
		return err
	}

	cb.recordSuccess(time.Since(start))
	return nil
}

// State returns the current state as last recorded. The open→half-open
// transition is evaluated when a call is attempted, not here.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// canAttempt reports whether a call may proceed. Caller must hold cb.mu.
// CLOSED and HALF_OPEN always allow; OPEN transitions to HALF_OPEN once
// the timeout since the last failure has elapsed.
func (cb *CircuitBreaker) canAttempt() bool {
	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if !cb.lastFailureTime.IsZero() &&
			time.Since(cb.lastFailureTime) > cb.config.TimeoutDuration {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess(elapsed time.Duration) {
	cb.mu.Lock()
	cb.successCount++
	cb.lastSuccessTime = time.Now()

	if cb.state == StateHalfOpen && cb.successCount >= cb.config.RecoveryThreshold {
		cb.transitionTo(StateClosed)
		cb.failureCount = 0
	}
	cb.pruneHistory()
	cb.mu.Unlock()

	cb.config.Metrics.RecordSuccess(cb.config.Name)
	cb.config.Logger.Debug("Circuit breaker recorded success", map[string]interface{}{
		"operation":   "circuit_breaker_success",
		"name":        cb.config.Name,
		"duration_ms": elapsed.Milliseconds(),
	})
}

func (cb *CircuitBreaker) recordFailure(err error) {
	errorKind := errKind(err)

	cb.mu.Lock()
	now := time.Now()
	cb.failureCount++
	cb.lastFailureTime = now

	cb.failureHistory = append(cb.failureHistory, FailureRecord{
		Timestamp: now,
		ErrorKind: errorKind,
		Message:   err.Error(),
		Service:   cb.config.Name,
	})
	cb.pruneHistory()

	// The failure count is not reset when entering half-open, so a single
	// failed probe is enough to trip the threshold again immediately.
	opened := false
	if cb.failureCount >= cb.config.FailureThreshold && cb.state != StateOpen {
		cb.transitionTo(StateOpen)
		cb.successCount = 0
		opened = true
	}
	failureCount := cb.failureCount
	cb.mu.Unlock()

	cb.config.Metrics.RecordFailure(cb.config.Name, errorKind)
	if opened {
		cb.config.Logger.Warn("Circuit breaker opened", map[string]interface{}{
			"operation":     "circuit_breaker_opened",
			"name":          cb.config.Name,
			"failure_count": failureCount,
			"error":         err.Error(),
		})
	} else {
		cb.config.Logger.Error("Circuit breaker recorded failure", map[string]interface{}{
			"operation":     "circuit_breaker_failure",
			"name":          cb.config.Name,
			"failure_count": failureCount,
			"error_kind":    errorKind,
			"error":         err.Error(),
		})
	}
}

// transitionTo changes state. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	oldState := cb.state
	if oldState == newState {
		return
	}
	cb.state = newState
	cb.config.Metrics.RecordStateChange(cb.config.Name, oldState.String(), newState.String())
	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation": "circuit_breaker_transition",
		"name":      cb.config.Name,
		"from":      oldState.String(),
		"to":        newState.String(),
	})
}

// pruneHistory drops failure records older than the window and caps the
// history length. Caller must hold cb.mu.
func (cb *CircuitBreaker) pruneHistory() {
	cutoff := time.Now().Add(-cb.config.WindowDuration)
	kept := cb.failureHistory[:0]
	for _, record := range cb.failureHistory {
		if record.Timestamp.After(cutoff) {
			kept = append(kept, record)
		}
	}
	if len(kept) > cb.config.MaxFailuresPerWindow {
		kept = kept[len(kept)-cb.config.MaxFailuresPerWindow:]
	}
	cb.failureHistory = kept
}

// RecentFailures returns a copy of the in-window failure history. It does
// not modify the stored history; pruning happens when failures are
// recorded.
func (cb *CircuitBreaker) RecentFailures() []FailureRecord {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cutoff := time.Now().Add(-cb.config.WindowDuration)
	out := make([]FailureRecord, 0, len(cb.failureHistory))
	for _, record := range cb.failureHistory {
		if record.Timestamp.After(cutoff) {
			out = append(out, record)
		}
	}
	return out
}

// Statistics returns a snapshot for monitoring endpoints. Reads are
// side-effect-free; the in-window failure count is computed against the
// cutoff without touching the stored history.
func (cb *CircuitBreaker) Statistics() Statistics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cutoff := time.Now().Add(-cb.config.WindowDuration)
	recent := 0
	for _, record := range cb.failureHistory {
		if record.Timestamp.After(cutoff) {
			recent++
		}
	}
	stats := Statistics{
		Name:           cb.config.Name,
		State:          cb.state.String(),
		FailureCount:   cb.failureCount,
		SuccessCount:   cb.successCount,
		RecentFailures: recent,
		FailureRate:    float64(recent) / float64(max(1, recent+cb.successCount)) * 100,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		stats.LastFailure = &t
	}
	if !cb.lastSuccessTime.IsZero() {
		t := cb.lastSuccessTime
		stats.LastSuccess = &t
	}
	return stats
}

// Reset returns the breaker to the closed state and clears all counters.
// Intended for manual operator intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	previous := cb.state
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.failureHistory = nil
	cb.mu.Unlock()

	cb.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
		"operation":      "circuit_breaker_reset",
		"name":           cb.config.Name,
		"previous_state": previous.String(),
	})
}

func errKind(err error) string {
	var openErr *CircuitOpenError
	switch {
	case errors.As(err, &openErr):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, core.ErrMaxRetriesExceeded):
		return "retries_exhausted"
	default:
		return fmt.Sprintf("%T", err)
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

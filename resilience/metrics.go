package resilience

// MetricsCollector receives circuit breaker events for monitoring.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordSuccess is called after a guarded operation succeeds
	RecordSuccess(breaker string)

	// RecordFailure is called after a guarded operation fails
	RecordFailure(breaker string, errorKind string)

	// RecordStateChange is called on every breaker state transition
	RecordStateChange(breaker string, from string, to string)

	// RecordRejection is called when an open breaker fails a call fast
	RecordRejection(breaker string)
}

// noopMetrics discards all events. Used when no collector is configured.
type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                  {}
func (noopMetrics) RecordFailure(string, string)          {}
func (noopMetrics) RecordStateChange(string, string, string) {}
func (noopMetrics) RecordRejection(string)                {}

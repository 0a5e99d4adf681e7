package resilience

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsCollector implements MetricsCollector using OpenTelemetry
// instruments from the globally registered meter provider. If no provider
// has been installed the instruments are no-ops, so it is always safe to
// construct.
type OTelMetricsCollector struct {
	ctx         context.Context
	successes   metric.Int64Counter
	failures    metric.Int64Counter
	transitions metric.Int64Counter
	rejections  metric.Int64Counter
}

// NewOTelMetricsCollector creates a new OpenTelemetry metrics collector
func NewOTelMetricsCollector(ctx context.Context) (*OTelMetricsCollector, error) {
	meter := otel.Meter("iris/resilience")

	successes, err := meter.Int64Counter("circuit_breaker.success",
		metric.WithDescription("Successful executions through the circuit breaker"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("circuit_breaker.failure",
		metric.WithDescription("Failed executions through the circuit breaker"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("circuit_breaker.state_change",
		metric.WithDescription("Circuit breaker state transitions"))
	if err != nil {
		return nil, err
	}
	rejections, err := meter.Int64Counter("circuit_breaker.rejected",
		metric.WithDescription("Calls rejected by an open circuit breaker"))
	if err != nil {
		return nil, err
	}

	return &OTelMetricsCollector{
		ctx:         ctx,
		successes:   successes,
		failures:    failures,
		transitions: transitions,
		rejections:  rejections,
	}, nil
}

// RecordSuccess records a successful execution
func (o *OTelMetricsCollector) RecordSuccess(name string) {
	o.successes.Add(o.ctx, 1, metric.WithAttributes(
		attribute.String("circuit_breaker", name),
	))
}

// RecordFailure records a failed execution
func (o *OTelMetricsCollector) RecordFailure(name string, errorKind string) {
	o.failures.Add(o.ctx, 1, metric.WithAttributes(
		attribute.String("circuit_breaker", name),
		attribute.String("error_kind", errorKind),
	))
}

// RecordStateChange records a state transition
func (o *OTelMetricsCollector) RecordStateChange(name string, from, to string) {
	o.transitions.Add(o.ctx, 1, metric.WithAttributes(
		attribute.String("circuit_breaker", name),
		attribute.String("from_state", from),
		attribute.String("to_state", to),
	))
}

// RecordRejection records a call failed fast by an open breaker
func (o *OTelMetricsCollector) RecordRejection(name string) {
	o.rejections.Add(o.ctx, 1, metric.WithAttributes(
		attribute.String("circuit_breaker", name),
	))
}

// Package metrics exposes the ledger engine's OpenTelemetry instruments.
// Without a configured MeterProvider every instrument is a no-op.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels for ledger operations.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder records ledger, budget and consistency measurements.
type Recorder struct {
	operations     metric.Int64Counter
	duration       metric.Float64Histogram
	violations     metric.Int64Counter
	recomputations metric.Int64Counter
}

// NewRecorder builds a Recorder on provider, or on the global provider when nil.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter("tally.ledger")

	var (
		r   Recorder
		err error
	)

	r.operations, err = meter.Int64Counter(
		"tally.ledger.operations",
		metric.WithDescription("Number of ledger and budget operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tally.ledger.operations counter: %w", err)
	}

	r.duration, err = meter.Float64Histogram(
		"tally.ledger.duration",
		metric.WithDescription("Time taken by one unit of work"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tally.ledger.duration histogram: %w", err)
	}

	r.violations, err = meter.Int64Counter(
		"tally.consistency.violations",
		metric.WithDescription("Invariant violations detected after a write or during reconciliation"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tally.consistency.violations counter: %w", err)
	}

	r.recomputations, err = meter.Int64Counter(
		"tally.budget.recomputations",
		metric.WithDescription("Budget category spent amounts recomputed from transactions"),
		metric.WithUnit("{recomputation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tally.budget.recomputations counter: %w", err)
	}

	return &r, nil
}

// MustRecorder is NewRecorder on the global provider. The no-op default
// provider never fails, so a failure here is a programming error.
func MustRecorder() *Recorder {
	r, err := NewRecorder(nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Operation records one finished operation and how long it took.
func (r *Recorder) Operation(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	r.operations.Add(ctx, 1, attrs)
	r.duration.Record(ctx, elapsed.Seconds(), attrs)
}

// Violation records an invariant that failed to hold.
func (r *Recorder) Violation(ctx context.Context, invariant string) {
	if r == nil {
		return
	}
	r.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("invariant", invariant)))
}

// Recomputed records n budget categories whose spent amount was recomputed.
func (r *Recorder) Recomputed(ctx context.Context, n int) {
	if r == nil || n == 0 {
		return
	}
	r.recomputations.Add(ctx, int64(n))
}

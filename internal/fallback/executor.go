// Package fallback runs an RPC operation against a chain's endpoints one at a time,
// healthiest first, and returns the first success.
package fallback

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/multichain-pay/internal/health"
	"github.com/yourorg/multichain-pay/internal/metrics"
	"github.com/yourorg/multichain-pay/internal/otel"
	"go.opentelemetry.io/otel/trace"
)

// Operation is a query against a single endpoint
type Operation[T any] func(ctx context.Context, endpoint string) (T, error)

// Executor owns the health tracker used to order candidates.
// One executor is shared by every chain; it holds no per-call state.
type Executor struct {
	tracker  *health.Tracker
	recorder metrics.Recorder
	tracer   trace.Tracer
}

// NewExecutor creates an executor around tracker
func NewExecutor(tracker *health.Tracker) *Executor {
	return &Executor{
		tracker:  tracker,
		recorder: metrics.NoopRecorder{},
		tracer:   otel.Tracer(),
	}
}

// WithRecorder sets the metrics backend and returns the executor
func (e *Executor) WithRecorder(rec metrics.Recorder) *Executor {
	e.recorder = rec
	return e
}

// WithTracer sets the tracer and returns the executor
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer
	return e
}

// Tracker returns the health tracker
func (e *Executor) Tracker() *health.Tracker {
	return e.tracker
}

// ExecuteOne is Execute for a single endpoint
func ExecuteOne[T any](ctx context.Context, e *Executor, chain, endpoint string, op Operation[T]) (T, error) {
	return Execute(ctx, e, chain, []string{endpoint}, op)
}

// Execute tries op against the endpoints of chain until one succeeds.
//
// Endpoints that are healthy (or past their recovery window) are tried first, followed by
// the rest, each group in configured order. Attempts are strictly sequential. A temporary
// error marks the endpoint unhealthy; any other error only moves on to the next candidate.
// When every endpoint fails the result is an *AggregateError listing each attempt.
func Execute[T any](ctx context.Context, e *Executor, chain string, endpoints []string, op Operation[T]) (T, error) {
	var zero T

	ctx, span := otel.StartRPCSpan(ctx, e.tracer, chain, len(endpoints))
	defer span.End()

	order := e.tryOrder(chain, endpoints)
	attempts := make([]AttemptError, 0, len(order))
	var cause error
	if len(order) == 0 {
		cause = ErrNoEndpoints
	}

	for i, endpoint := range order {
		if err := ctx.Err(); err != nil {
			cause = err
			break
		}

		log := logrus.WithFields(logrus.Fields{
			"chain":    chain,
			"endpoint": endpoint,
			"attempt":  i + 1,
		})

		started := time.Now()
		result, err := op(ctx, endpoint)
		elapsed := time.Since(started)

		if err == nil {
			e.tracker.MarkHealthy(chain, endpoint)
			e.recorder.ObserveAttempt(chain, metrics.OutcomeSuccess, elapsed)
			log.WithField("duration", elapsed).Debug("RPC call succeeded")
			return result, nil
		}

		attempts = append(attempts, AttemptError{
			Endpoint: endpoint,
			Message:  err.Error(),
			Code:     ErrorCode(err),
		})

		if IsTemporaryError(err) {
			e.tracker.MarkUnhealthy(chain, endpoint)
			e.recorder.ObserveAttempt(chain, metrics.OutcomeTemporary, elapsed)
			log.Warnf("RPC endpoint rate limited or forbidden: %v", err)
		} else {
			e.recorder.ObserveAttempt(chain, metrics.OutcomeRequest, elapsed)
			log.Debugf("RPC call failed: %v", err)
		}
	}

	aggErr := &AggregateError{Chain: chain, Details: attempts, cause: cause}
	e.recorder.IncFallbackFailure(chain)
	otel.RecordError(ctx, aggErr)
	logrus.WithField("chain", chain).Warn(aggErr.Error())
	return zero, aggErr
}

// tryOrder puts eligible endpoints first and the rest after, both in configured order
func (e *Executor) tryOrder(chain string, endpoints []string) []string {
	healthy := e.tracker.HealthyEndpoints(chain, endpoints)

	eligible := make(map[string]struct{}, len(healthy))
	for _, ep := range healthy {
		eligible[ep] = struct{}{}
	}

	order := make([]string, 0, len(endpoints))
	order = append(order, healthy...)
	for _, ep := range endpoints {
		if _, ok := eligible[ep]; !ok {
			order = append(order, ep)
		}
	}
	return order
}

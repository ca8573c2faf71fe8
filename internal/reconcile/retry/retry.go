package retry

import (
	"context"
	"math/rand/v2"

	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DeadLetter receives events whose persistence could not be completed.
// Implementations must not panic or block indefinitely.
type DeadLetter interface {
	Persist(ctx context.Context, event domain.IncomingEvent, cause error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	DeadLetter DeadLetter
	Metrics    *metrics.ReconcileMetrics `optional:"true"`
}

// Executor runs persistence operations with bounded exponential backoff.
type Executor struct {
	log        *zap.Logger
	clock      clock.Clock
	deadLetter DeadLetter
	metrics    *metrics.ReconcileMetrics
	unit       func() float64
}

func NewExecutor(p Params) *Executor {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Executor{
		log:        p.Log.Named("reconcile.retry"),
		clock:      clk,
		deadLetter: p.DeadLetter,
		metrics:    p.Metrics,
		unit:       rand.Float64,
	}
}

// Do runs op until it succeeds, the attempts run out, or the elapsed budget
// is spent. On exhaustion the originating event, when given, is dead-lettered
// and the last error from op is returned unchanged.
func (e *Executor) Do(ctx context.Context, label string, policy Policy, event *domain.IncomingEvent, op func(ctx context.Context) error) error {
	_, err := Run(ctx, e, label, policy, event, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run is Do for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, label string, policy Policy, event *domain.IncomingEvent, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalize()
	log := logger.WithContext(ctx, e.log).With(zap.String("operation", label))
	if event != nil {
		log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	}

	start := e.clock.Now()
	var (
		zero    T
		lastErr error
		tried   int
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		tried = attempt
		result, err := op(ctx)
		e.metrics.IncAttempt(label, err)
		if err == nil {
			if attempt >= 2 {
				log.Info("operation recovered after retry", zap.Int("attempts", attempt))
				e.metrics.IncRecovered(label)
			}
			return result, nil
		}
		lastErr = err
		log.Warn("operation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err),
		)
		if attempt == policy.MaxAttempts {
			break
		}

		elapsed := e.clock.Now().Sub(start)
		if elapsed >= policy.MaxElapsed {
			log.Warn("retry budget spent",
				zap.Duration("elapsed", elapsed),
				zap.Duration("max_elapsed", policy.MaxElapsed),
			)
			break
		}
		delay := policy.backoff(attempt, e.unit)
		if remaining := policy.MaxElapsed - elapsed; delay > remaining {
			delay = remaining
		}
		e.metrics.ObserveBackoff(label, delay)
		if err := e.clock.Sleep(ctx, delay); err != nil {
			log.Warn("retry interrupted", zap.Error(err))
			break
		}
	}

	log.Error("operation exhausted retries",
		zap.Int("attempts", tried),
		zap.Duration("elapsed", e.clock.Now().Sub(start)),
		zap.Error(lastErr),
	)
	e.metrics.IncExhausted(label, lastErr)
	if event != nil && e.deadLetter != nil {
		e.deadLetter.Persist(context.WithoutCancel(ctx), *event, lastErr)
	}
	return zero, lastErr
}

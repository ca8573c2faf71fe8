package dispatcher

import (
	"context"
	"slices"

	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/observability/tracing"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// otherEventType is the metric label for event types without an adapter.
const otherEventType = "other"

// Adapters persists each recognized event kind.
type Adapters interface {
	PaymentSucceeded(ctx context.Context, ev domain.PaymentSucceeded) error
	PaymentCanceled(ctx context.Context, ev domain.PaymentCanceled) error
	PaymentFailed(ctx context.Context, ev domain.PaymentFailed) error
	ChargeRefunded(ctx context.Context, ev domain.ChargeRefunded) error
	AccountUpdated(ctx context.Context, ev domain.AccountUpdated) error
	PayoutPaid(ctx context.Context, ev domain.PayoutPaid) error
	PayoutFailed(ctx context.Context, ev domain.PayoutFailed) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Adapters Adapters
	Metrics  *metrics.ReconcileMetrics `optional:"true"`
}

type Dispatcher struct {
	log      *zap.Logger
	adapters Adapters
	metrics  *metrics.ReconcileMetrics
	tracer   trace.Tracer
}

func New(p Params) *Dispatcher {
	return &Dispatcher{
		log:      p.Log.Named("reconcile.dispatcher"),
		adapters: p.Adapters,
		metrics:  p.Metrics,
		tracer:   otel.Tracer("guardbook/reconcile"),
	}
}

// Dispatch routes a verified event to its adapter. Unknown types are
// acknowledged without touching storage. A returned error means persistence
// failed after retries and the event was already handed to the dead letter.
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.IncomingEvent) (domain.DispatchResult, error) {
	ctx, span := d.tracer.Start(ctx, "reconcile.dispatch",
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("stripe.event_id", in.ID),
			attribute.String("stripe.event_type", in.Type),
		)...),
	)
	defer span.End()

	log := logger.WithContext(ctx, d.log).With(
		zap.String("event_id", in.ID),
		zap.String("event_type", in.Type),
	)
	result := domain.DispatchResult{Type: in.Type}

	ev, err := domain.Decode(in)
	if err != nil {
		log.Warn("event object could not be decoded", zap.Error(err))
		d.metrics.IncEvent(metricLabel(in.Type), metrics.OutcomeFailed)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "decode failed")
		return result, err
	}

	switch ev := ev.(type) {
	case domain.PaymentSucceeded:
		err = d.adapters.PaymentSucceeded(ctx, ev)
	case domain.PaymentCanceled:
		err = d.adapters.PaymentCanceled(ctx, ev)
	case domain.PaymentFailed:
		err = d.adapters.PaymentFailed(ctx, ev)
	case domain.ChargeRefunded:
		err = d.adapters.ChargeRefunded(ctx, ev)
	case domain.AccountUpdated:
		err = d.adapters.AccountUpdated(ctx, ev)
	case domain.PayoutPaid:
		err = d.adapters.PayoutPaid(ctx, ev)
	case domain.PayoutFailed:
		err = d.adapters.PayoutFailed(ctx, ev)
	default:
		log.Info("ignoring unhandled event type")
		d.metrics.IncEvent(otherEventType, metrics.OutcomeIgnored)
		span.SetAttributes(attribute.Bool("reconcile.handled", false))
		return result, nil
	}

	if err != nil {
		log.Error("event persistence failed", zap.Error(err))
		d.metrics.IncEvent(in.Type, metrics.OutcomeFailed)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "persistence failed")
		return result, err
	}

	result.Handled = true
	d.metrics.IncEvent(in.Type, metrics.OutcomeHandled)
	span.SetAttributes(attribute.Bool("reconcile.handled", true))
	log.Debug("event handled")
	return result, nil
}

func metricLabel(eventType string) string {
	if slices.Contains(domain.KnownEventTypes, eventType) {
		return eventType
	}
	return otherEventType
}

package webhook

import (
	"context"

	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/observability/reqctx"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const providerStripe = "stripe"

// Dispatcher routes a verified event to persistence.
type Dispatcher interface {
	Dispatch(ctx context.Context, in domain.IncomingEvent) (domain.DispatchResult, error)
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	verifier   *Verifier
	log        *zap.Logger
	dispatcher Dispatcher
	metrics    *metrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		verifier:   NewVerifier(p.Config),
		log:        p.Log.Named("reconcile.webhook"),
		dispatcher: p.Dispatcher,
		metrics:    p.Metrics,
	}
}

// Ingest verifies one callback and dispatches it. Verification failures are
// returned before anything is persisted.
func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) (domain.DispatchResult, error) {
	in, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("webhook rejected", zap.Error(err))
		return domain.DispatchResult{}, err
	}

	ctx = reqctx.WithEventID(ctx, in.ID)
	s.metrics.RecordWebhookEvent(ctx, providerStripe, in.Type)
	logger.WithContext(ctx, s.log).Info("webhook verified", zap.String("event_type", in.Type))

	return s.dispatcher.Dispatch(ctx, in)
}

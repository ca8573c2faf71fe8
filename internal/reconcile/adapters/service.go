package adapters

import (
	"context"
	"strings"

	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opPaymentSucceeded = "payments.succeeded"
	opPaymentCanceled  = "payments.canceled"
	opPaymentFailed    = "payments.failed"
	opPaymentRefunded  = "payments.refunded"
	opBookingPaid      = "bookings.paid"
	opCompanyLookup    = "companies.lookup"
	opCompanyStatus    = "companies.status"
	opPayoutUpsert     = "payouts.upsert"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Retry   *retry.Executor
	Tuning  *config.ReconcileConfigHolder `optional:"true"`
	Clock   clock.Clock
	Metrics *metrics.ReconcileMetrics `optional:"true"`
}

// Service holds one persistence adapter per recognized event kind. Each
// adapter writes absolute values keyed by a provider reference, so running it
// twice for the same event leaves the same state as running it once.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	retry   *retry.Executor
	tuning  *config.ReconcileConfigHolder
	clock   clock.Clock
	metrics *metrics.ReconcileMetrics
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("reconcile.adapters"),
		repo:    p.Repo,
		retry:   p.Retry,
		tuning:  p.Tuning,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) policy() retry.Policy {
	return retry.PolicyFrom(s.tuning.Get().Retry)
}

func (s *Service) bookingPolicy() retry.Policy {
	tuning := s.tuning.Get()
	p := retry.PolicyFrom(tuning.Retry)
	p.MaxAttempts = tuning.Booking.MaxAttempts
	return p
}

// update runs a conditional update under retry. A reference that matches no
// row is logged and counted but is not an error.
func (s *Service) update(ctx context.Context, op, table string, event *domain.IncomingEvent, fn func(ctx context.Context) (int64, error), fields ...zap.Field) error {
	rows, err := retry.Run(ctx, s.retry, op, s.policy(), event, fn)
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.WithContext(ctx, s.log).Warn("update matched no rows",
			append(fields, zap.String("operation", op), zap.String("table", table))...,
		)
		s.metrics.IncZeroRowUpdate(table)
	}
	return nil
}

func metadataValue(metadata map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(metadata[key]); value != "" {
			return value
		}
	}
	return ""
}

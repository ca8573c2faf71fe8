package adapters

import (
	"context"

	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/retry"
	"go.uber.org/zap"
)

// PaymentSucceeded captures the payment and then, best effort, marks the
// booking named in the intent metadata as paid.
func (s *Service) PaymentSucceeded(ctx context.Context, ev domain.PaymentSucceeded) error {
	in := ev.Incoming()
	intent := ev.Intent
	captured := intent.AmountReceived
	if captured == 0 {
		captured = intent.Amount
	}
	chargeID := ""
	if intent.LatestCharge != nil {
		chargeID = intent.LatestCharge.ID
	}
	now := s.clock.Now()

	err := s.update(ctx, opPaymentSucceeded, "payments", &in, func(ctx context.Context) (int64, error) {
		return s.repo.MarkPaymentSucceeded(ctx, s.db, intent.ID, captured, chargeID, now)
	}, zap.String("preauth_id", intent.ID))
	if err != nil {
		return err
	}

	if bookingID := metadataValue(intent.Metadata, "booking_id", "bookingId"); bookingID != "" {
		s.syncBooking(ctx, bookingID, captured)
	}
	return nil
}

// syncBooking never fails the event: payment state is authoritative and the
// booking row catches up on a later delivery or by hand.
func (s *Service) syncBooking(ctx context.Context, bookingID string, amount int64) {
	log := logger.WithContext(ctx, s.log).With(zap.String("booking_id", bookingID))
	now := s.clock.Now()

	rows, err := retry.Run(ctx, s.retry, opBookingPaid, s.bookingPolicy(), nil, func(ctx context.Context) (int64, error) {
		return s.repo.MarkBookingPaid(ctx, s.db, bookingID, amount, now)
	})
	if err != nil {
		log.Error("booking sync failed after payment success", zap.Error(err))
		s.metrics.IncBookingSyncFailure()
		return
	}
	if rows == 0 {
		log.Warn("update matched no rows", zap.String("operation", opBookingPaid), zap.String("table", "bookings"))
		s.metrics.IncZeroRowUpdate("bookings")
	}
}

func (s *Service) PaymentCanceled(ctx context.Context, ev domain.PaymentCanceled) error {
	in := ev.Incoming()
	now := s.clock.Now()
	return s.update(ctx, opPaymentCanceled, "payments", &in, func(ctx context.Context) (int64, error) {
		return s.repo.SetPaymentStatusByPreauth(ctx, s.db, ev.Intent.ID, domain.PaymentStatusCanceled, now)
	}, zap.String("preauth_id", ev.Intent.ID), zap.String("cancellation_reason", string(ev.Intent.CancellationReason)))
}

func (s *Service) PaymentFailed(ctx context.Context, ev domain.PaymentFailed) error {
	in := ev.Incoming()
	now := s.clock.Now()
	fields := []zap.Field{zap.String("preauth_id", ev.Intent.ID)}
	if ev.Intent.LastPaymentError != nil {
		fields = append(fields, zap.String("decline_code", string(ev.Intent.LastPaymentError.DeclineCode)))
	}
	return s.update(ctx, opPaymentFailed, "payments", &in, func(ctx context.Context) (int64, error) {
		return s.repo.SetPaymentStatusByPreauth(ctx, s.db, ev.Intent.ID, domain.PaymentStatusFailed, now)
	}, fields...)
}

func (s *Service) ChargeRefunded(ctx context.Context, ev domain.ChargeRefunded) error {
	in := ev.Incoming()
	now := s.clock.Now()
	return s.update(ctx, opPaymentRefunded, "payments", &in, func(ctx context.Context) (int64, error) {
		return s.repo.SetPaymentStatusByCharge(ctx, s.db, ev.Charge.ID, domain.PaymentStatusRefunded, now)
	}, zap.String("charge_id", ev.Charge.ID), zap.Int64("amount_refunded", ev.Charge.AmountRefunded))
}

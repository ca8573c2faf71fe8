package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	stripe "github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

func (s *Service) PayoutPaid(ctx context.Context, ev domain.PayoutPaid) error {
	status := strings.TrimSpace(string(ev.Payout.Status))
	if status == "" {
		status = domain.PayoutStatusPaid
	}
	return s.upsertPayout(ctx, ev.Incoming(), ev.Payout, status)
}

func (s *Service) PayoutFailed(ctx context.Context, ev domain.PayoutFailed) error {
	return s.upsertPayout(ctx, ev.Incoming(), ev.Payout, domain.PayoutStatusFailed)
}

func (s *Service) upsertPayout(ctx context.Context, in domain.IncomingEvent, p stripe.Payout, status string) error {
	record := s.payoutRecord(ctx, in, p, status)
	return s.retry.Do(ctx, opPayoutUpsert, s.policy(), &in, func(ctx context.Context) error {
		return s.repo.UpsertPayout(ctx, s.db, record)
	})
}

func (s *Service) payoutRecord(ctx context.Context, in domain.IncomingEvent, p stripe.Payout, status string) domain.PayoutRecord {
	now := s.clock.Now().UTC()

	// Without any provider timestamp the period is clock-derived; the arrival
	// stays nil so a redelivery keeps the stored period.
	var arrival *time.Time
	switch {
	case p.ArrivalDate > 0:
		arrival = unixPtr(p.ArrivalDate)
	case !in.Created.IsZero():
		created := in.Created.UTC()
		arrival = &created
	case p.Created > 0:
		arrival = unixPtr(p.Created)
	}
	periodAnchor := now
	if arrival != nil {
		periodAnchor = *arrival
	}

	guardID := metadataValue(p.Metadata, "guard_id", "guardId")
	if guardID == "" {
		logger.WithContext(ctx, s.log).Warn("payout has no guard in metadata",
			zap.String("payout_id", p.ID),
		)
		guardID = domain.UnassignedGuardID
	}

	start, end, ok := periodFromMetadata(p.Metadata)
	if !ok {
		start, end = WeekContaining(periodAnchor)
	}

	createdAt := now
	if p.Created > 0 {
		createdAt = time.Unix(p.Created, 0).UTC()
	}

	record := domain.PayoutRecord{
		ID:          p.ID,
		GuardID:     guardID,
		CompanyID:   optionalString(metadataValue(p.Metadata, "company_id", "companyId")),
		Amount:      p.Amount,
		Currency:    strings.ToLower(string(p.Currency)),
		Status:      status,
		PeriodStart: start,
		PeriodEnd:   end,
		ArrivalDate: arrival,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	if status == domain.PayoutStatusFailed {
		msg := strings.TrimSpace(p.FailureMessage)
		if msg == "" {
			msg = string(p.FailureCode)
		}
		record.FailureMessage = optionalString(msg)
	}
	return record
}

func unixPtr(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

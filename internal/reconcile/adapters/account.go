package adapters

import (
	"context"

	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/retry"
	"go.uber.org/zap"
)

// AccountUpdated mirrors the connected account's payout capability onto the
// linked company. Accounts with no company are ignored.
func (s *Service) AccountUpdated(ctx context.Context, ev domain.AccountUpdated) error {
	in := ev.Incoming()
	acct := ev.Account

	company, err := retry.Run(ctx, s.retry, opCompanyLookup, s.policy(), &in, func(ctx context.Context) (*domain.CompanyRecord, error) {
		return s.repo.FindCompanyByStripeAccount(ctx, s.db, acct.ID)
	})
	if err != nil {
		return err
	}
	if company == nil {
		logger.WithContext(ctx, s.log).Info("no company linked to connected account",
			zap.String("stripe_account_id", acct.ID),
		)
		return nil
	}

	status := domain.CompanyStatusPending
	if acct.PayoutsEnabled {
		status = domain.CompanyStatusPayoutsEnabled
	}
	now := s.clock.Now()
	return s.update(ctx, opCompanyStatus, "companies", &in, func(ctx context.Context) (int64, error) {
		return s.repo.SetCompanyStatus(ctx, s.db, company.ID, status, now)
	}, zap.String("company_id", company.ID), zap.String("status", status))
}

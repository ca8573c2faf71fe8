package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) MarkPaymentSucceeded(ctx context.Context, db *gorm.DB, preauthID string, amountCaptured int64, chargeID string, at time.Time) (int64, error) {
	var charge *string
	if chargeID != "" {
		charge = &chargeID
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, amount_captured = ?, charge_id = COALESCE(?, charge_id), updated_at = ?
		 WHERE preauth_id = ?`,
		domain.PaymentStatusSucceeded,
		amountCaptured,
		charge,
		at,
		preauthID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetPaymentStatusByPreauth(ctx context.Context, db *gorm.DB, preauthID, status string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ? WHERE preauth_id = ?`,
		status,
		at,
		preauthID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetPaymentStatusByCharge(ctx context.Context, db *gorm.DB, chargeID, status string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ? WHERE charge_id = ?`,
		status,
		at,
		chargeID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkBookingPaid(ctx context.Context, db *gorm.DB, bookingID string, amountPaid int64, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bookings SET status = ?, amount_paid = ?, updated_at = ? WHERE id = ?`,
		domain.BookingStatusPaid,
		amountPaid,
		at,
		bookingID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindCompanyByStripeAccount(ctx context.Context, db *gorm.DB, accountID string) (*domain.CompanyRecord, error) {
	var company domain.CompanyRecord
	err := db.WithContext(ctx).
		Where("stripe_account_id = ?", accountID).
		Take(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repo) SetCompanyStatus(ctx context.Context, db *gorm.DB, companyID, status string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE companies SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		at,
		companyID,
	)
	return result.RowsAffected, result.Error
}

// UpsertPayout keeps the first created_at and overwrites everything else, so a
// redelivered payout event converges on the latest provider state. A payout
// without an arrival date leaves the stored arrival and period untouched.
func (r *repo) UpsertPayout(ctx context.Context, db *gorm.DB, payout domain.PayoutRecord) error {
	columns := []string{
		"guard_id",
		"company_id",
		"amount",
		"currency",
		"status",
		"failure_message",
		"updated_at",
	}
	if payout.ArrivalDate != nil {
		columns = append(columns, "period_start", "period_end", "arrival_date")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&payout).Error
}

func (r *repo) InsertFailedEvent(ctx context.Context, db *gorm.DB, record domain.FailedEventRecord) error {
	return db.WithContext(ctx).Create(&record).Error
}

func (r *repo) ListFailedEvents(ctx context.Context, db *gorm.DB, beforeID int64, limit int) ([]domain.FailedEventRecord, error) {
	query := db.WithContext(ctx).Model(&domain.FailedEventRecord{})
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	var rows []domain.FailedEventRecord
	if err := query.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository is the persistence surface of reconciliation. Every update sets
// absolute values keyed by an external reference and returns the number of
// rows it matched.
type Repository interface {
	MarkPaymentSucceeded(ctx context.Context, db *gorm.DB, preauthID string, amountCaptured int64, chargeID string, at time.Time) (int64, error)
	SetPaymentStatusByPreauth(ctx context.Context, db *gorm.DB, preauthID, status string, at time.Time) (int64, error)
	SetPaymentStatusByCharge(ctx context.Context, db *gorm.DB, chargeID, status string, at time.Time) (int64, error)
	MarkBookingPaid(ctx context.Context, db *gorm.DB, bookingID string, amountPaid int64, at time.Time) (int64, error)
	FindCompanyByStripeAccount(ctx context.Context, db *gorm.DB, accountID string) (*CompanyRecord, error)
	SetCompanyStatus(ctx context.Context, db *gorm.DB, companyID, status string, at time.Time) (int64, error)
	UpsertPayout(ctx context.Context, db *gorm.DB, payout PayoutRecord) error
	InsertFailedEvent(ctx context.Context, db *gorm.DB, record FailedEventRecord) error
	// ListFailedEvents returns rows newest first; beforeID > 0 continues after that row.
	ListFailedEvents(ctx context.Context, db *gorm.DB, beforeID int64, limit int) ([]FailedEventRecord, error)
}

package reconciletest

import (
	"context"
	"time"

	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockRepository is a testify mock of domain.Repository. Tests that expect no
// persistence leave it without expectations and call AssertNotCalled.
type MockRepository struct {
	mock.Mock
}

var _ domain.Repository = (*MockRepository)(nil)

func (m *MockRepository) MarkPaymentSucceeded(ctx context.Context, db *gorm.DB, preauthID string, amountCaptured int64, chargeID string, at time.Time) (int64, error) {
	args := m.Called(ctx, db, preauthID, amountCaptured, chargeID, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) SetPaymentStatusByPreauth(ctx context.Context, db *gorm.DB, preauthID, status string, at time.Time) (int64, error) {
	args := m.Called(ctx, db, preauthID, status, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) SetPaymentStatusByCharge(ctx context.Context, db *gorm.DB, chargeID, status string, at time.Time) (int64, error) {
	args := m.Called(ctx, db, chargeID, status, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) MarkBookingPaid(ctx context.Context, db *gorm.DB, bookingID string, amountPaid int64, at time.Time) (int64, error) {
	args := m.Called(ctx, db, bookingID, amountPaid, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) FindCompanyByStripeAccount(ctx context.Context, db *gorm.DB, accountID string) (*domain.CompanyRecord, error) {
	args := m.Called(ctx, db, accountID)
	company, _ := args.Get(0).(*domain.CompanyRecord)
	return company, args.Error(1)
}

func (m *MockRepository) SetCompanyStatus(ctx context.Context, db *gorm.DB, companyID, status string, at time.Time) (int64, error) {
	args := m.Called(ctx, db, companyID, status, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) UpsertPayout(ctx context.Context, db *gorm.DB, payout domain.PayoutRecord) error {
	args := m.Called(ctx, db, payout)
	return args.Error(0)
}

func (m *MockRepository) InsertFailedEvent(ctx context.Context, db *gorm.DB, record domain.FailedEventRecord) error {
	args := m.Called(ctx, db, record)
	return args.Error(0)
}

func (m *MockRepository) ListFailedEvents(ctx context.Context, db *gorm.DB, beforeID int64, limit int) ([]domain.FailedEventRecord, error) {
	args := m.Called(ctx, db, beforeID, limit)
	rows, _ := args.Get(0).([]domain.FailedEventRecord)
	return rows, args.Error(1)
}

// AssertNoPersistence fails the test if any repository method was invoked.
func (m *MockRepository) AssertNoPersistence(t mock.TestingT) bool {
	return assert.Empty(t, m.Calls, "expected no repository calls")
}

package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"

	PayoutStatusPending = "pending"
	PayoutStatusPaid    = "paid"
	PayoutStatusFailed  = "failed"

	BookingStatusPaid = "paid"

	CompanyStatusPayoutsEnabled = "payouts_enabled"
	CompanyStatusPending        = "pending"

	// UnassignedGuardID stands in for payouts whose metadata lacks a guard.
	UnassignedGuardID = "unassigned"
)

// PaymentRecord rows are created at booking time; reconciliation only updates them.
type PaymentRecord struct {
	ID             string    `gorm:"primaryKey"`
	BookingID      *string   `gorm:"column:booking_id"`
	PreauthID      *string   `gorm:"column:preauth_id"`
	ChargeID       *string   `gorm:"column:charge_id"`
	Status         string    `gorm:"column:status"`
	AmountPreauth  int64     `gorm:"column:amount_preauth"`
	AmountCaptured *int64    `gorm:"column:amount_captured"`
	Currency       string    `gorm:"column:currency"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (PaymentRecord) TableName() string { return "payments" }

type PayoutRecord struct {
	ID             string     `gorm:"primaryKey"`
	GuardID        string     `gorm:"column:guard_id"`
	CompanyID      *string    `gorm:"column:company_id"`
	Amount         int64      `gorm:"column:amount"`
	Currency       string     `gorm:"column:currency"`
	Status         string     `gorm:"column:status"`
	PeriodStart    time.Time  `gorm:"column:period_start"`
	PeriodEnd      time.Time  `gorm:"column:period_end"`
	ArrivalDate    *time.Time `gorm:"column:arrival_date"`
	FailureMessage *string    `gorm:"column:failure_message"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (PayoutRecord) TableName() string { return "payouts" }

type BookingRecord struct {
	ID         string    `gorm:"primaryKey"`
	Status     string    `gorm:"column:status"`
	AmountPaid *int64    `gorm:"column:amount_paid"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (BookingRecord) TableName() string { return "bookings" }

type CompanyRecord struct {
	ID              string    `gorm:"primaryKey"`
	StripeAccountID *string   `gorm:"column:stripe_account_id"`
	Status          string    `gorm:"column:status"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (CompanyRecord) TableName() string { return "companies" }

// FailedEventRecord is the append-only dead-letter row. Payload holds the
// provider's request body exactly as received.
type FailedEventRecord struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	EventID   string         `gorm:"column:event_id" json:"event_id"`
	EventType string         `gorm:"column:event_type" json:"type"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	Error     string         `gorm:"column:error" json:"error"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (FailedEventRecord) TableName() string { return "stripe_failed_events" }

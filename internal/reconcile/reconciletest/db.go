// Package reconciletest holds fixtures shared by reconciliation tests.
package reconciletest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE companies (
		id TEXT PRIMARY KEY,
		name TEXT,
		stripe_account_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE bookings (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		amount_paid BIGINT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		booking_id TEXT,
		preauth_id TEXT,
		charge_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		amount_preauth BIGINT NOT NULL DEFAULT 0,
		amount_captured BIGINT,
		currency TEXT NOT NULL DEFAULT 'usd',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE payouts (
		id TEXT PRIMARY KEY,
		guard_id TEXT NOT NULL,
		company_id TEXT,
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		arrival_date TIMESTAMP,
		failure_message TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE stripe_failed_events (
		id BIGINT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSON NOT NULL,
		error TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// OpenDB returns an isolated in-memory database with the reconciliation tables.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedPayment inserts a pending payment authorised under preauthID.
func SeedPayment(t testing.TB, db *gorm.DB, id, bookingID, preauthID string, amountPreauth int64) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO payments (id, booking_id, preauth_id, status, amount_preauth) VALUES (?, ?, ?, 'pending', ?)`,
		id, bookingID, preauthID, amountPreauth,
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func SeedBooking(t testing.TB, db *gorm.DB, id string) {
	t.Helper()
	if err := db.Exec(`INSERT INTO bookings (id, status) VALUES (?, 'confirmed')`, id).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func SeedCompany(t testing.TB, db *gorm.DB, id, stripeAccountID string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO companies (id, stripe_account_id, status) VALUES (?, ?, 'pending')`,
		id, stripeAccountID,
	).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_type", "payout.paid"),
		attribute.String("event_id", "evt_123"),
		attribute.String("provider", "stripe"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "event_id" {
			t.Fatalf("event_id must not be used as a metric label")
		}
	}
}

func TestClassifyPersistenceReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("update: %w", context.DeadlineExceeded), want: ReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: ReasonSerializationFailure},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: ReasonDB},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
		{name: "nil", err: nil, want: ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPersistenceReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestReconcileMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewReconcileMetrics(registry, Config{ServiceName: "guardbook", Environment: "test"})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.IncEvent("payout.paid", OutcomeHandled)
	m.IncAttempt("payments.succeeded", errors.New("boom"))
	m.IncAttempt("payments.succeeded", nil)
	m.IncRecovered("payments.succeeded")
	m.IncExhausted("payouts.upsert", &pgconn.PgError{Code: "55P03"})
	m.ObserveBackoff("payouts.upsert", 50*time.Millisecond)
	m.IncDeadLetter(DeadLetterRecorded)

	if got := testutil.ToFloat64(m.events.WithLabelValues("payout.paid", OutcomeHandled)); got != 1 {
		t.Fatalf("expected 1 handled event, got %v", got)
	}
	if got := testutil.ToFloat64(m.retryAttempts.WithLabelValues("payments.succeeded", "failure")); got != 1 {
		t.Fatalf("expected 1 failed attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.retryExhausted.WithLabelValues("payouts.upsert", ReasonDBLockTimeout)); got != 1 {
		t.Fatalf("expected 1 exhausted op, got %v", got)
	}
	if got := testutil.ToFloat64(m.deadLetters.WithLabelValues(DeadLetterRecorded)); got != 1 {
		t.Fatalf("expected 1 dead letter, got %v", got)
	}
}

func TestReconcileMetricsNilSafe(t *testing.T) {
	var m *ReconcileMetrics
	m.IncEvent("x", OutcomeIgnored)
	m.IncAttempt("x", nil)
	m.IncBookingSyncFailure()
	m.IncZeroRowUpdate("payments")
}

func TestReconcileMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewReconcileMetrics(registry, Config{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewReconcileMetrics(registry, Config{}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

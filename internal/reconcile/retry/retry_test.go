package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/config"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordedDeadLetter struct {
	event domain.IncomingEvent
	cause error
}

type fakeDeadLetter struct {
	mu    sync.Mutex
	calls []recordedDeadLetter
}

func (f *fakeDeadLetter) Persist(_ context.Context, event domain.IncomingEvent, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedDeadLetter{event: event, cause: cause})
}

func newTestExecutor(t *testing.T, clk clock.Clock, dl DeadLetter) *Executor {
	t.Helper()
	return NewExecutor(Params{Log: zaptest.NewLogger(t), Clock: clk, DeadLetter: dl})
}

func TestDoSucceedsFirstTry(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	dl := &fakeDeadLetter{}
	e := newTestExecutor(t, clk, dl)

	calls := 0
	err := e.Do(context.Background(), "payments.succeeded", DefaultPolicy(), nil, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clk.Sleeps())
	assert.Empty(t, dl.calls)
}

func TestDoRecoversAndLogs(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	core, logs := observer.New(zapcore.InfoLevel)
	e := NewExecutor(Params{Log: zap.New(core), Clock: clk, DeadLetter: &fakeDeadLetter{}})

	calls := 0
	err := e.Do(context.Background(), "payouts.upsert", Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxElapsed: time.Second}, nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clk.Sleeps())
	assert.Equal(t, 2, logs.FilterMessage("operation attempt failed").Len())
	recovered := logs.FilterMessage("operation recovered after retry").All()
	require.Len(t, recovered, 1)
	assert.Equal(t, int64(3), recovered[0].ContextMap()["attempts"])
}

func TestElapsedBudgetClampsSchedule(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	e := newTestExecutor(t, clk, &fakeDeadLetter{})
	boom := errors.New("store unavailable")

	calls := 0
	err := e.Do(context.Background(), "payments.canceled", Policy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxElapsed:  120 * time.Millisecond,
		Jitter:      false,
	}, nil, func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 70 * time.Millisecond}, clk.Sleeps())
}

func TestElapsedBudgetBoundsWallClock(t *testing.T) {
	e := newTestExecutor(t, clock.SystemClock{}, &fakeDeadLetter{})

	start := time.Now()
	err := e.Do(context.Background(), "payments.failed", Policy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxElapsed:  120 * time.Millisecond,
		Jitter:      false,
	}, nil, func(context.Context) error {
		return errors.New("always fails")
	})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExhaustionDeadLettersOriginatingEvent(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	dl := &fakeDeadLetter{}
	registry := prometheus.NewRegistry()
	m, err := metrics.NewReconcileMetrics(registry, metrics.Config{Environment: "test"})
	require.NoError(t, err)
	e := NewExecutor(Params{Log: zaptest.NewLogger(t), Clock: clk, DeadLetter: dl, Metrics: m})

	event := &domain.IncomingEvent{ID: "evt_1", Type: domain.EventTypePayoutPaid, Payload: []byte(`{"id":"evt_1"}`)}
	boom := errors.New("deadlock detected")

	err = e.Do(context.Background(), "payouts.upsert", Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxElapsed: time.Second}, event, func(context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.Len(t, dl.calls, 1)
	assert.Equal(t, "evt_1", dl.calls[0].event.ID)
	assert.Equal(t, domain.EventTypePayoutPaid, dl.calls[0].event.Type)
	assert.ErrorIs(t, dl.calls[0].cause, boom)
}

func TestExhaustionWithoutEventSkipsDeadLetter(t *testing.T) {
	dl := &fakeDeadLetter{}
	e := newTestExecutor(t, clock.NewFakeClock(time.Now()), dl)

	err := e.Do(context.Background(), "bookings.paid", Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxElapsed: time.Second}, nil, func(context.Context) error {
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Empty(t, dl.calls)
}

func TestCancelledContextStopsBackoff(t *testing.T) {
	dl := &fakeDeadLetter{}
	e := newTestExecutor(t, clock.NewFakeClock(time.Now()), dl)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := e.Do(ctx, "payments.succeeded", DefaultPolicy(), &domain.IncomingEvent{ID: "evt_2"}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, dl.calls, 1)
}

func TestRunReturnsValue(t *testing.T) {
	e := newTestExecutor(t, clock.NewFakeClock(time.Now()), &fakeDeadLetter{})

	got, err := Run(context.Background(), e, "companies.lookup", DefaultPolicy(), nil, func(context.Context) (string, error) {
		return "co_1", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "co_1", got)
}

func TestBackoffJitterBounds(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, Jitter: true}

	assert.InDelta(t, float64(85*time.Millisecond), float64(p.backoff(1, func() float64 { return 0 })), 1e3)
	assert.Equal(t, 200*time.Millisecond, p.backoff(2, func() float64 { return 0.5 }))
	high := p.backoff(3, func() float64 { return 0.999999 })
	assert.Greater(t, high, 400*time.Millisecond)
	assert.LessOrEqual(t, high, 460*time.Millisecond)

	p.Jitter = false
	assert.Equal(t, 800*time.Millisecond, p.backoff(4, func() float64 { return 0 }))
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFrom(config.RetryConfig{MaxAttempts: 0, BaseDelay: -time.Second})

	assert.Equal(t, 1, p.MaxAttempts)
	assert.Zero(t, p.BaseDelay)
	assert.Equal(t, DefaultMaxElapsed, p.MaxElapsed)
}

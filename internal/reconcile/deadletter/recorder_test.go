package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/internal/reconcile/reconciletest"
	"github.com/smallbiznis/guardbook/internal/reconcile/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestPersistWritesVerbatimPayload(t *testing.T) {
	db := reconciletest.OpenDB(t)
	now := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	rec := NewRecorder(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		Repo:  repository.Provide(),
		GenID: newNode(t),
		Clock: clock.NewFakeClock(now),
	})
	payload := []byte(`{"id":"evt_9",  "type":"payout.failed","data":{"object":{"id":"po_9"}}}`)

	rec.Persist(context.Background(), domain.IncomingEvent{
		ID:      "evt_9",
		Type:    domain.EventTypePayoutFailed,
		Payload: payload,
	}, errors.New("connection refused"))

	var rows []domain.FailedEventRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.NotZero(t, rows[0].ID)
	assert.Equal(t, "evt_9", rows[0].EventID)
	assert.Equal(t, domain.EventTypePayoutFailed, rows[0].EventType)
	assert.Equal(t, string(payload), string(rows[0].Payload))
	assert.Equal(t, "connection refused", rows[0].Error)
	assert.True(t, now.Equal(rows[0].CreatedAt))
}

func TestPersistSwallowsWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	repo := &reconciletest.MockRepository{}
	repo.On("InsertFailedEvent", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

	rec := NewRecorder(Params{
		Log:   zap.New(core),
		Repo:  repo,
		GenID: newNode(t),
		Clock: clock.NewFakeClock(time.Now()),
	})

	assert.NotPanics(t, func() {
		rec.Persist(context.Background(), domain.IncomingEvent{ID: "evt_1", Type: "payout.paid"}, errors.New("boom"))
	})
	assert.Equal(t, 1, logs.FilterMessage("failed to persist dead-letter event").Len())
	repo.AssertNumberOfCalls(t, "InsertFailedEvent", 1)
}

func TestPersistRetriesOnceOnDuplicateID(t *testing.T) {
	repo := &reconciletest.MockRepository{}
	repo.On("InsertFailedEvent", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("UNIQUE constraint failed: stripe_failed_events.id")).Once()
	repo.On("InsertFailedEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	rec := NewRecorder(Params{
		Log:   zaptest.NewLogger(t),
		Repo:  repo,
		GenID: newNode(t),
		Clock: clock.NewFakeClock(time.Now()),
	})
	rec.Persist(context.Background(), domain.IncomingEvent{ID: "evt_1", Type: "payout.paid"}, errors.New("boom"))

	repo.AssertNumberOfCalls(t, "InsertFailedEvent", 2)
	first := repo.Calls[0].Arguments.Get(2).(domain.FailedEventRecord)
	second := repo.Calls[1].Arguments.Get(2).(domain.FailedEventRecord)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPersistRecoversFromPanic(t *testing.T) {
	repo := &reconciletest.MockRepository{}
	repo.On("InsertFailedEvent", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("driver bug")
	})

	rec := NewRecorder(Params{
		Log:   zaptest.NewLogger(t),
		Repo:  repo,
		GenID: newNode(t),
		Clock: clock.NewFakeClock(time.Now()),
	})

	assert.NotPanics(t, func() {
		rec.Persist(context.Background(), domain.IncomingEvent{ID: "evt_1"}, nil)
	})
}

func TestPayloadFallbackForInvalidJSON(t *testing.T) {
	got := payloadOf(domain.IncomingEvent{ID: "evt_1", Type: "payout.paid", Payload: []byte("not json")})
	assert.JSONEq(t, `{"id":"evt_1","type":"payout.paid"}`, string(got))
	assert.Equal(t, "unknown error", errorText(nil))
}

func TestRecentListsNewestFirst(t *testing.T) {
	db := reconciletest.OpenDB(t)
	clk := clock.NewFakeClock(time.Now())
	rec := NewRecorder(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		Repo:  repository.Provide(),
		GenID: newNode(t),
		Clock: clk,
	})
	for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
		rec.Persist(context.Background(), domain.IncomingEvent{ID: id, Type: "payout.paid", Payload: []byte(`{}`)}, errors.New("boom"))
		clk.Advance(time.Second)
	}

	rows, err := rec.Recent(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "evt_c", rows[0].EventID)
	assert.Equal(t, "evt_b", rows[1].EventID)
}

package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/guardbook/internal/clock"
	"github.com/smallbiznis/guardbook/internal/observability/logger"
	"github.com/smallbiznis/guardbook/internal/observability/metrics"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const writeTimeout = 5 * time.Second

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.ReconcileMetrics `optional:"true"`
}

// Recorder owns the stripe_failed_events table: it appends rows when retries
// are exhausted and serves them back to operators.
type Recorder struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.ReconcileMetrics
}

func NewRecorder(p Params) *Recorder {
	return &Recorder{
		db:      p.DB,
		log:     p.Log.Named("reconcile.deadletter"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

// Persist writes one dead-letter row. It never returns an error and never
// panics: a failed write is logged and counted, nothing more.
func (r *Recorder) Persist(ctx context.Context, event domain.IncomingEvent, cause error) {
	log := logger.WithContext(ctx, r.log).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
	)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("dead-letter write panicked", zap.Any("panic", rec))
			r.metrics.IncDeadLetter(metrics.DeadLetterWriteFailed)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	record := domain.FailedEventRecord{
		ID:        r.genID.Generate().Int64(),
		EventID:   event.ID,
		EventType: event.Type,
		Payload:   payloadOf(event),
		Error:     errorText(cause),
		CreatedAt: r.clock.Now().UTC(),
	}

	err := r.repo.InsertFailedEvent(ctx, r.db, record)
	if db.IsDuplicateKeyErr(err) {
		// another replica generated the same id; a fresh one is enough
		record.ID = r.genID.Generate().Int64()
		err = r.repo.InsertFailedEvent(ctx, r.db, record)
	}
	if err != nil {
		log.Error("failed to persist dead-letter event",
			zap.Error(err),
			zap.String("cause", record.Error),
		)
		r.metrics.IncDeadLetter(metrics.DeadLetterWriteFailed)
		return
	}

	log.Warn("event dead-lettered",
		zap.Int64("dead_letter_id", record.ID),
		zap.String("cause", record.Error),
	)
	r.metrics.IncDeadLetter(metrics.DeadLetterRecorded)
}

// Recent returns up to limit rows newest first, continuing below beforeID when it is positive.
func (r *Recorder) Recent(ctx context.Context, beforeID int64, limit int) ([]domain.FailedEventRecord, error) {
	rows, err := r.repo.ListFailedEvents(ctx, r.db, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed events: %w", err)
	}
	return rows, nil
}

func payloadOf(event domain.IncomingEvent) datatypes.JSON {
	if len(event.Payload) > 0 && json.Valid(event.Payload) {
		return datatypes.JSON(event.Payload)
	}
	// keep the row insertable even when the body is unusable
	fallback, _ := json.Marshal(map[string]string{"id": event.ID, "type": event.Type})
	return datatypes.JSON(fallback)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}

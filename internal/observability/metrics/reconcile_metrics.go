package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"

	DeadLetterRecorded    = "recorded"
	DeadLetterWriteFailed = "write_failed"
)

// ReconcileMetrics captures payment-event reconciliation health. All methods
// are safe on a nil receiver so components can run without metrics in tests.
type ReconcileMetrics struct {
	events          *prometheus.CounterVec
	retryAttempts   *prometheus.CounterVec
	retryRecovered  *prometheus.CounterVec
	retryExhausted  *prometheus.CounterVec
	retryBackoff    *prometheus.HistogramVec
	deadLetters     *prometheus.CounterVec
	bookingSyncFail prometheus.Counter
	zeroRowUpdates  *prometheus.CounterVec
}

func NewReconcileMetrics(registerer prometheus.Registerer, cfg Config) (*ReconcileMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &ReconcileMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_reconcile_events_total",
			Help:        "Verified provider events by type and dispatch outcome.",
			ConstLabels: constLabels,
		}, []string{"event_type", "outcome"}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_reconcile_retry_attempts_total",
			Help:        "Persistence attempts made by the retry executor.",
			ConstLabels: constLabels,
		}, []string{"operation", "result"}),
		retryRecovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_reconcile_retry_recovered_total",
			Help:        "Operations that succeeded after at least one failed attempt.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		retryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_reconcile_retry_exhausted_total",
			Help:        "Operations that ran out of attempts or elapsed budget.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		retryBackoff: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "guardbook_reconcile_retry_backoff_seconds",
			Help:        "Backoff slept between persistence attempts.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_dead_letters_total",
			Help:        "Dead-letter writes by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		bookingSyncFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "guardbook_booking_sync_failures_total",
			Help:        "Booking updates abandoned after a successful payment update.",
			ConstLabels: constLabels,
		}),
		zeroRowUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "guardbook_reconcile_zero_row_updates_total",
			Help:        "Conditional updates whose external reference matched no row.",
			ConstLabels: constLabels,
		}, []string{"table"}),
	}

	collectors := []prometheus.Collector{
		m.events,
		m.retryAttempts,
		m.retryRecovered,
		m.retryExhausted,
		m.retryBackoff,
		m.deadLetters,
		m.bookingSyncFail,
		m.zeroRowUpdates,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *ReconcileMetrics) IncEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, outcome).Inc()
}

func (m *ReconcileMetrics) IncAttempt(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.retryAttempts.WithLabelValues(operation, result).Inc()
}

func (m *ReconcileMetrics) IncRecovered(operation string) {
	if m == nil {
		return
	}
	m.retryRecovered.WithLabelValues(operation).Inc()
}

func (m *ReconcileMetrics) IncExhausted(operation string, err error) {
	if m == nil {
		return
	}
	m.retryExhausted.WithLabelValues(operation, ClassifyPersistenceReason(err)).Inc()
}

func (m *ReconcileMetrics) ObserveBackoff(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.retryBackoff.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *ReconcileMetrics) IncDeadLetter(result string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(result).Inc()
}

func (m *ReconcileMetrics) IncBookingSyncFailure() {
	if m == nil {
		return
	}
	m.bookingSyncFail.Inc()
}

func (m *ReconcileMetrics) IncZeroRowUpdate(table string) {
	if m == nil {
		return
	}
	m.zeroRowUpdates.WithLabelValues(table).Inc()
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "guardbook"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

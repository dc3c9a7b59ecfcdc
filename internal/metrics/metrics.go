package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the ledger service.
type Metrics struct {
	entriesRecorded      *prometheus.CounterVec
	duplicates           prometheus.Counter
	classifyErrors       *prometheus.CounterVec
	historyQueries       prometheus.Counter
	notificationsSent    prometheus.Counter
	notificationsDropped prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			entriesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tx_ledger_entries_recorded_total",
				Help: "Total number of ledger entries inserted, by asset",
			}, []string{"asset"}),
			duplicates: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tx_ledger_duplicate_requests_total",
				Help: "Total number of log requests for already-recorded hashes",
			}),
			classifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tx_ledger_classify_errors_total",
				Help: "Total number of failed classifications, by kind",
			}, []string{"kind"}),
			historyQueries: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tx_ledger_history_queries_total",
				Help: "Total number of history queries served",
			}),
			notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tx_ledger_notifications_sent_total",
				Help: "Total number of notifications delivered to sinks",
			}),
			notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tx_ledger_notifications_dropped_total",
				Help: "Total number of notifications dropped (rate-limit/failure)",
			}),
		}
		prometheus.MustRegister(
			metrics.entriesRecorded,
			metrics.duplicates,
			metrics.classifyErrors,
			metrics.historyQueries,
			metrics.notificationsSent,
			metrics.notificationsDropped,
		)
	})
	return metrics
}

// EntryRecorded increments the inserted-entries counter for asset.
func (m *Metrics) EntryRecorded(asset string) {
	if m != nil {
		m.entriesRecorded.WithLabelValues(asset).Inc()
	}
}

// Duplicate increments the duplicate requests counter.
func (m *Metrics) Duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

// ClassifyError increments the classification error counter for kind.
func (m *Metrics) ClassifyError(kind string) {
	if m != nil {
		m.classifyErrors.WithLabelValues(kind).Inc()
	}
}

// HistoryQuery increments the history queries counter.
func (m *Metrics) HistoryQuery() {
	if m != nil {
		m.historyQueries.Inc()
	}
}

// NotificationSent increments the notifications sent counter.
func (m *Metrics) NotificationSent() {
	if m != nil {
		m.notificationsSent.Inc()
	}
}

// NotificationDropped increments the notifications dropped counter.
func (m *Metrics) NotificationDropped() {
	if m != nil {
		m.notificationsDropped.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the archival module.
type Metrics struct {
	AccountsArchived    *prometheus.CounterVec
	AccountsUnarchived  prometheus.Counter
	AccountsPurged      prometheus.Counter
	PurgeRejectedEarly  prometheus.Counter
	BulkArchiveDuration prometheus.Histogram
	PurgeDueAccounts    prometheus.Gauge
}

// New creates a Metrics instance with all archival module metrics registered.
func New() *Metrics {
	return &Metrics{
		AccountsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_accounts_archived_total",
			Help: "Accounts archived, by reason",
		}, []string{"reason"}),
		AccountsUnarchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archivist_accounts_unarchived_total",
			Help: "Accounts restored to active",
		}),
		AccountsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archivist_accounts_purged_total",
			Help: "Accounts permanently deleted",
		}),
		PurgeRejectedEarly: promauto.NewCounter(prometheus.CounterOpts{
			Name: "archivist_purge_rejected_retention_total",
			Help: "Permanent deletions rejected because the retention window had not elapsed",
		}),
		BulkArchiveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "archivist_bulk_archive_duration_seconds",
			Help:    "Duration of bulk archive operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		PurgeDueAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "archivist_purge_due_accounts",
			Help: "Archived accounts whose retention window has elapsed",
		}),
	}
}

// IncrementArchived records a successful archive by reason.
func (m *Metrics) IncrementArchived(reason string) {
	m.AccountsArchived.WithLabelValues(reason).Inc()
}

// ObserveBulkArchive records the duration of a bulk archive operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveBulkArchive(start time.Time) {
	m.BulkArchiveDuration.Observe(time.Since(start).Seconds())
}

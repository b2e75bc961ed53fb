package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archivist_audit_entries_total",
		Help: "Audit entries recorded, by action",
	}, []string{"action"})

	appendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archivist_audit_append_failures_total",
		Help: "Audit entries that could not be persisted",
	})

	forwardDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archivist_audit_forward_dropped_total",
		Help: "Audit entries dropped because the forwarding queue was full",
	})
)

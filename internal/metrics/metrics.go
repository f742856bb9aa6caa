// Package metrics provides Prometheus metrics for repodash.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fileWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodash_file_writes_total",
			Help: "Total file update/restore/clear attempts",
		},
		[]string{"target", "action", "outcome"},
	)

	versionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodash_version_conflicts_total",
			Help: "Conditional writes rejected by the remote store",
		},
		[]string{"target"},
	)

	auditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repodash_audit_records_total",
			Help: "Audit records written, by kind",
		},
		[]string{"kind"},
	)

	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repodash_sse_connections_active",
			Help: "Currently connected dashboard viewers",
		},
	)

	systemLocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repodash_system_locked",
			Help: "1 when the system lock is engaged, 0 otherwise",
		},
	)
)

// RecordWrite counts one update/restore/clear attempt and its outcome.
func RecordWrite(target, action string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	fileWritesTotal.WithLabelValues(target, action, outcome).Inc()
}

// RecordVersionConflict counts a write rejected with a stale version tag.
func RecordVersionConflict(target string) {
	versionConflictsTotal.WithLabelValues(target).Inc()
}

// RecordAuditRecord counts one audit log insert.
func RecordAuditRecord(kind string) {
	auditRecordsTotal.WithLabelValues(kind).Inc()
}

// SetSSEConnectionsActive sets the viewer connection gauge.
func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

// SetSystemLocked sets the lock flag gauge.
func SetSystemLocked(locked bool) {
	if locked {
		systemLocked.Set(1)
	} else {
		systemLocked.Set(0)
	}
}

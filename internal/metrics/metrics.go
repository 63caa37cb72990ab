package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_events_total",
		Help: "Check-in and check-out requests by outcome.",
	}, []string{"action", "outcome"})

	lateEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_late_events_total",
		Help: "Accepted check-ins and check-outs at or after the late threshold.",
	}, []string{"action"})

	auditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_audit_dropped_total",
		Help: "Audit entries that could not be queued or stored.",
	})

	liveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_live_clients",
		Help: "Connected dashboard websocket clients.",
	})
)

// ObserveEvent counts a check-in/out attempt.
func ObserveEvent(action, outcome string) {
	events.WithLabelValues(action, outcome).Inc()
}

// ObserveLate counts a late event.
func ObserveLate(action string) {
	lateEvents.WithLabelValues(action).Inc()
}

// AuditDropped counts a lost audit entry.
func AuditDropped() {
	auditDropped.Inc()
}

// LiveClients tracks connected websocket clients.
func LiveClients(delta float64) {
	liveClients.Add(delta)
}

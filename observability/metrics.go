package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Intake, backed by any go-utils MetricFactory
// (e.g. the forge-managed metrics system via fapp.Metrics()).
type Metrics struct {
	AdmissionsTotal   gu.Counter
	DuplicatesTotal   gu.Counter
	ExecutionsTotal   gu.Counter
	HandlerLatency    gu.Histogram
	DLQSize           gu.Gauge
	PendingExecutions gu.Gauge
}

// NewMetrics creates Intake metric instruments using the supplied factory.
// Pass fapp.Metrics() from a forge extension, or a named
// metrics.NewMetricsCollector for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		AdmissionsTotal:   factory.Counter("intake_admissions_total"),
		DuplicatesTotal:   factory.Counter("intake_duplicates_total"),
		ExecutionsTotal:   factory.Counter("intake_executions_total"),
		HandlerLatency:    factory.Histogram("intake_handler_latency_seconds"),
		DLQSize:           factory.Gauge("intake_dlq_size"),
		PendingExecutions: factory.Gauge("intake_pending_executions"),
	}
}

// RecordAdmission records an admission attempt with the gateway's verdict.
func (m *Metrics) RecordAdmission(outcome string) {
	m.AdmissionsTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
}

// RecordExecution records an execution attempt with the given status and latency.
func (m *Metrics) RecordExecution(status string, latencySeconds float64) {
	m.ExecutionsTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.HandlerLatency.Observe(latencySeconds)
}

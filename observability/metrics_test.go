package observability

import (
	"testing"

	"github.com/xraph/go-utils/metrics"
)

func TestNewMetrics_Registers(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("test"))

	if m.AdmissionsTotal == nil {
		t.Fatal("AdmissionsTotal should not be nil")
	}
	if m.DuplicatesTotal == nil {
		t.Fatal("DuplicatesTotal should not be nil")
	}
	if m.ExecutionsTotal == nil {
		t.Fatal("ExecutionsTotal should not be nil")
	}
	if m.HandlerLatency == nil {
		t.Fatal("HandlerLatency should not be nil")
	}
	if m.DLQSize == nil {
		t.Fatal("DLQSize should not be nil")
	}
	if m.PendingExecutions == nil {
		t.Fatal("PendingExecutions should not be nil")
	}
}

func TestRecordExecution(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("test"))

	// Each status gets its own labeled series; recording must not panic on
	// repeated or new label combinations.
	m.RecordExecution("processed", 0.5)
	m.RecordExecution("processed", 1.2)
	m.RecordExecution("retried", 0.1)
	m.RecordExecution("failed", 0.3)
}

func TestRecordAdmission(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("test"))

	m.RecordAdmission("admitted")
	m.RecordAdmission("admitted")
	m.RecordAdmission("rate_limited")
	m.RecordAdmission("duplicate")
}

func TestGauges(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("test"))

	m.DLQSize.Set(42)
	m.DLQSize.Inc()
	m.PendingExecutions.Set(100)
	m.PendingExecutions.Dec()
	m.DuplicatesTotal.Inc()
}

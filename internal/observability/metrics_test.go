package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.RowsRead.WithLabelValues("pds").Add(3)
	m.PeerComparisons.WithLabelValues("true").Inc()

	if got := testutil.ToFloat64(m.RowsRead.WithLabelValues("pds")); got != 3 {
		t.Errorf("rows read: got %v, want 3", got)
	}
	n, err := testutil.GatherAndCount(reg, "test_peerlens_comparisons_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 series, got %d", n)
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.AlertsFailed)
	RecordAlerts([]string{"CRITICAL_RISK"}, errors.New("telegram down"))
	if got := testutil.ToFloat64(DefaultMetrics.AlertsFailed); got != before+1 {
		t.Errorf("alerts failed: got %v, want %v", got, before+1)
	}

	sent := testutil.ToFloat64(DefaultMetrics.AlertsSent.WithLabelValues("GRIEVANCE_SPIKE"))
	RecordAlerts([]string{"GRIEVANCE_SPIKE", "GRIEVANCE_SPIKE"}, nil)
	if got := testutil.ToFloat64(DefaultMetrics.AlertsSent.WithLabelValues("GRIEVANCE_SPIKE")); got != sent+2 {
		t.Errorf("alerts sent: got %v, want %v", got, sent+2)
	}

	hits := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	if got := testutil.ToFloat64(DefaultMetrics.CacheLookups.WithLabelValues("hit")); got != hits+1 {
		t.Errorf("cache hits: got %v, want %v", got, hits+1)
	}

	RecordRows("pds", 10, map[string]int{"bad_month": 2, "other_state": 0})
	if got := testutil.ToFloat64(DefaultMetrics.RowsDropped.WithLabelValues("bad_month")); got < 2 {
		t.Errorf("rows dropped: got %v", got)
	}
}

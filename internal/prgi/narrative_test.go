package prgi

import (
	"testing"

	"civinigrani/internal/domain"
)

func TestNarrative(t *testing.T) {
	tests := []struct {
		prgi float64
		want string
	}{
		{0.45, "Agra: Critical failure. Over 30% of allocated grain did not reach the distribution point."},
		{0.20, "Agra: High leakage detected. 20.0% of allocation is unaccounted for."},
		{0.15, "Agra: Good performance with a minor delivery gap of 15.0%."},
		{0.0, "Agra: Good performance with a minor delivery gap of 0.0%."},
	}

	for _, tc := range tests {
		got := DefaultThresholds.Narrative(domain.PRGIRecord{District: "agra", PRGI: tc.prgi})
		if got != tc.want {
			t.Errorf("prgi=%v:\n got %q\nwant %q", tc.prgi, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if DefaultThresholds.Classify(0.31) != SeverityCritical {
		t.Error("0.31 should be critical")
	}
	if DefaultThresholds.Classify(0.30) != SeverityHigh {
		t.Error("0.30 is not above critical")
	}
	if DefaultThresholds.Classify(0.10) != SeverityNormal {
		t.Error("0.10 should be normal")
	}
}

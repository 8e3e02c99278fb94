package prgi

import (
	"fmt"

	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
)

// Thresholds classify a PRGI value.
type Thresholds struct {
	Moderate float64 // above: high leakage
	Critical float64 // above: critical failure
}

// DefaultThresholds are 15% and 30% gaps.
var DefaultThresholds = Thresholds{Moderate: 0.15, Critical: 0.30}

// Severity is the qualitative band of a PRGI value.
type Severity string

const (
	SeverityNormal   Severity = "NORMAL"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Classify returns the severity band for prgi.
func (th Thresholds) Classify(prgi float64) Severity {
	switch {
	case prgi > th.Critical:
		return SeverityCritical
	case prgi > th.Moderate:
		return SeverityHigh
	default:
		return SeverityNormal
	}
}

// Narrative returns a plain-English explanation of a record's gap.
func (th Thresholds) Narrative(r domain.PRGIRecord) string {
	name := normalization.TitleCase(r.District)
	switch th.Classify(r.PRGI) {
	case SeverityCritical:
		return fmt.Sprintf("%s: Critical failure. Over %.0f%% of allocated grain did not reach the distribution point.",
			name, th.Critical*100)
	case SeverityHigh:
		return fmt.Sprintf("%s: High leakage detected. %.1f%% of allocation is unaccounted for.", name, r.PRGI*100)
	default:
		return fmt.Sprintf("%s: Good performance with a minor delivery gap of %.1f%%.", name, r.PRGI*100)
	}
}

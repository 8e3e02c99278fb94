package anomaly

import (
	"strings"

	"civinigrani/internal/domain"
)

// HighAllocationThreshold flags allocations no single district-month plausibly receives (quintals).
const HighAllocationThreshold = 1e6

// ruleReasons evaluates the rule pass for one record. Rule order is fixed.
func ruleReasons(r domain.PRGIRecord, highAllocation float64) []string {
	var reasons []string
	if r.PRGI >= 0.99 {
		reasons = append(reasons, "100% delivery gap")
	}
	if r.Allocation > 0 && r.Distribution == 0 {
		reasons = append(reasons, "No distribution")
	}
	if r.Allocation > highAllocation {
		reasons = append(reasons, "Unusually high allocation")
	}
	if r.Allocation < 0 || r.Distribution < 0 {
		reasons = append(reasons, "Negative values")
	}
	if r.Distribution > r.Allocation {
		reasons = append(reasons, "Distribution exceeds allocation")
	}
	return reasons
}

// DetectSimple runs the rule pass. It needs no training and always runs.
// Statistical fields of the returned flags are left zero.
func DetectSimple(records []domain.PRGIRecord) []domain.AnomalyFlag {
	return detectSimple(records, HighAllocationThreshold)
}

// DetectSimple runs the rule pass with the detector's allocation ceiling.
func (d *Detector) DetectSimple(records []domain.PRGIRecord) []domain.AnomalyFlag {
	return detectSimple(records, d.highAllocation())
}

func detectSimple(records []domain.PRGIRecord, highAllocation float64) []domain.AnomalyFlag {
	out := make([]domain.AnomalyFlag, len(records))
	for i, r := range records {
		out[i] = domain.AnomalyFlag{PRGIRecord: r}
		applyRules(&out[i], highAllocation)
	}
	return out
}

func applyRules(f *domain.AnomalyFlag, highAllocation float64) {
	reasons := ruleReasons(f.PRGIRecord, highAllocation)
	f.SimpleAnomaly = strings.Join(reasons, "; ")
	f.IsSimpleAnomaly = len(reasons) > 0
}

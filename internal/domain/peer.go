package domain

import "fmt"

// Interpretation verdicts for a peer ratio.
const (
	VerdictBetter       = "Better than peers"
	VerdictWorse        = "Worse than peers"
	VerdictComparable   = "Comparable to peers"
	VerdictInsufficient = "Insufficient data"
)

// Interpretation keys.
const (
	MetricDeliveryGap        = "delivery_gap"
	MetricGrievancePressure  = "grievance_pressure"
	MetricResolutionCapacity = "resolution_capacity"
)

// Ratio is a relative metric that may be undefined.
// Undefined is distinct from zero and from infinity.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio returns a defined ratio.
func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

// UndefinedRatio is the explicit "no value" sentinel.
var UndefinedRatio = Ratio{}

// String renders the ratio with three decimals, or "n/a".
func (r Ratio) String() string {
	if !r.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", r.Value)
}

// PeerComparison is the PeerLens result for one target district.
type PeerComparison struct {
	District  string
	PeerCount int
	Valid     bool
	Note      string // set when !Valid

	PRGIRelative       Ratio
	GrievanceRelative  Ratio
	ResolutionRelative Ratio

	Peers          []string          // title-cased peer names, for audit
	Interpretation map[string]string // Metric* -> Verdict*
}

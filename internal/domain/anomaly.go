package domain

// AnomalyFlag annotates a PRGIRecord with rule-based and statistical outlier results.
type AnomalyFlag struct {
	PRGIRecord

	// Statistical pass
	IsAnomaly     bool
	AnomalyScore  float64 // more negative = more anomalous
	AnomalyReason string

	// Rule-based pass
	IsSimpleAnomaly bool
	SimpleAnomaly   string // "; "-joined triggered rules, empty when none
}

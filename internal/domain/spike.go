package domain

import "time"

// SpikeFlag is one grievance observation annotated against its rolling baseline.
type SpikeFlag struct {
	GrievanceSignal
	Baseline  float64 // trailing mean, inclusive of current month
	Threshold float64 // Baseline * sensitivity
	IsSpike   bool
}

// Intensity returns Signals / Baseline, or 0 when the baseline is zero.
func (f SpikeFlag) Intensity() float64 {
	if f.Baseline <= 0 {
		return 0
	}
	return float64(f.Signals) / f.Baseline
}

// TrendAlert is raised when a district's latest PRGI jumps above its recent mean.
type TrendAlert struct {
	District   string
	Month      time.Time
	Latest     float64
	RecentMean float64 // mean of the three months before Month
	Threshold  float64
}

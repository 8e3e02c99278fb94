// Package spike flags grievance surges against a trailing baseline and
// raises PRGI trend alerts for individual districts.
package spike

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"civinigrani/internal/domain"
)

const (
	DefaultWindow      = 3
	DefaultSensitivity = 1.5

	// TrendMinMonths is the shortest PRGI history TrendAlert will judge.
	TrendMinMonths = 4
	// TrendFloor suppresses alerts on near-zero gaps.
	TrendFloor = 0.1
)

// Detector compares each month's count against Sensitivity times the
// rolling mean of the last Window months, current month included.
type Detector struct {
	Window      int
	Sensitivity float64
	Floor       float64 // trend alerts need the latest PRGI above this
}

// NewDetector returns a detector with the default window and the given
// sensitivity. Non-positive sensitivity selects the default.
func NewDetector(sensitivity float64) *Detector {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return &Detector{Window: DefaultWindow, Sensitivity: sensitivity, Floor: TrendFloor}
}

// Detect annotates every observation. When any row carries a district the
// series is partitioned per district; otherwise it is one state-level series.
// Output is ordered by (district, month).
func (d *Detector) Detect(series []domain.GrievanceSignal) []domain.SpikeFlag {
	if len(series) == 0 {
		return nil
	}

	sorted := append([]domain.GrievanceSignal(nil), series...)
	partitioned := false
	for _, s := range sorted {
		if s.District != "" {
			partitioned = true
			break
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if partitioned && sorted[i].District != sorted[j].District {
			return sorted[i].District < sorted[j].District
		}
		return sorted[i].Month.Before(sorted[j].Month)
	})

	window := d.Window
	if window <= 0 {
		window = DefaultWindow
	}

	out := make([]domain.SpikeFlag, 0, len(sorted))
	start := 0
	for i := range sorted {
		if partitioned && i > 0 && sorted[i].District != sorted[i-1].District {
			start = i
		}
		lo := i - window + 1
		if lo < start {
			lo = start
		}
		vals := make([]float64, 0, i-lo+1)
		for _, s := range sorted[lo : i+1] {
			vals = append(vals, float64(s.Signals))
		}
		baseline := stat.Mean(vals, nil)
		threshold := baseline * d.Sensitivity

		out = append(out, domain.SpikeFlag{
			GrievanceSignal: sorted[i],
			Baseline:        baseline,
			Threshold:       threshold,
			IsSpike:         float64(sorted[i].Signals) > threshold,
		})
	}
	return out
}

// Spikes returns only the flagged rows.
func Spikes(flags []domain.SpikeFlag) []domain.SpikeFlag {
	var out []domain.SpikeFlag
	for _, f := range flags {
		if f.IsSpike {
			out = append(out, f)
		}
	}
	return out
}

// TrendAlert checks one district's PRGI history. The latest value must
// exceed both sensitivity times the mean of the three preceding months and
// Floor. History may be unsorted.
func (d *Detector) TrendAlert(history []domain.PRGIRecord) (domain.TrendAlert, bool) {
	if len(history) < TrendMinMonths {
		return domain.TrendAlert{}, false
	}

	sorted := append([]domain.PRGIRecord(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Month.Before(sorted[j].Month) })

	n := len(sorted)
	prior := make([]float64, 0, 3)
	for _, r := range sorted[n-4 : n-1] {
		prior = append(prior, r.PRGI)
	}
	latest := sorted[n-1]
	mean := stat.Mean(prior, nil)
	threshold := mean * d.Sensitivity

	if latest.PRGI <= threshold || latest.PRGI <= d.Floor {
		return domain.TrendAlert{}, false
	}
	return domain.TrendAlert{
		District:   latest.District,
		Month:      latest.Month,
		Latest:     latest.PRGI,
		RecentMean: mean,
		Threshold:  threshold,
	}, true
}

// TrendAlerts runs TrendAlert for every district in records, ordered by district.
func (d *Detector) TrendAlerts(records []domain.PRGIRecord) []domain.TrendAlert {
	byDistrict := make(map[string][]domain.PRGIRecord)
	for _, r := range records {
		byDistrict[r.District] = append(byDistrict[r.District], r)
	}
	names := make([]string, 0, len(byDistrict))
	for name := range byDistrict {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []domain.TrendAlert
	for _, name := range names {
		if a, ok := d.TrendAlert(byDistrict[name]); ok {
			out = append(out, a)
		}
	}
	return out
}

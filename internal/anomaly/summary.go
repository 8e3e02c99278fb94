package anomaly

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"civinigrani/internal/domain"
)

const summaryTopN = 5

// DistrictCount is an anomaly tally for one district.
type DistrictCount struct {
	District string
	Count    int
}

// MonthCount is an anomaly tally for one month.
type MonthCount struct {
	Month time.Time
	Count int
}

// Summary aggregates statistical anomaly flags.
type Summary struct {
	TotalRecords    int
	TotalAnomalies  int
	AnomalyRate     float64 // percent
	AvgAnomalyScore float64 // mean score over anomalies, 0 when none
	TopDistricts    []DistrictCount
	TopMonths       []MonthCount
}

// Summarize tallies flags. Top lists hold at most five entries, ordered by
// count descending then key ascending.
func Summarize(flags []domain.AnomalyFlag) Summary {
	anomalies := lo.Filter(flags, func(f domain.AnomalyFlag, _ int) bool { return f.IsAnomaly })

	s := Summary{
		TotalRecords:   len(flags),
		TotalAnomalies: len(anomalies),
	}
	if len(flags) > 0 {
		s.AnomalyRate = float64(len(anomalies)) / float64(len(flags)) * 100
	}
	if len(anomalies) > 0 {
		s.AvgAnomalyScore = lo.SumBy(anomalies, func(f domain.AnomalyFlag) float64 { return f.AnomalyScore }) /
			float64(len(anomalies))
	}

	byDistrict := lo.CountValuesBy(anomalies, func(f domain.AnomalyFlag) string { return f.District })
	for d, c := range byDistrict {
		s.TopDistricts = append(s.TopDistricts, DistrictCount{District: d, Count: c})
	}
	sort.Slice(s.TopDistricts, func(i, j int) bool {
		a, b := s.TopDistricts[i], s.TopDistricts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.District < b.District
	})
	if len(s.TopDistricts) > summaryTopN {
		s.TopDistricts = s.TopDistricts[:summaryTopN]
	}

	byMonth := lo.CountValuesBy(anomalies, func(f domain.AnomalyFlag) time.Time { return f.Month })
	for m, c := range byMonth {
		s.TopMonths = append(s.TopMonths, MonthCount{Month: m, Count: c})
	}
	sort.Slice(s.TopMonths, func(i, j int) bool {
		a, b := s.TopMonths[i], s.TopMonths[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Month.Before(b.Month)
	})
	if len(s.TopMonths) > summaryTopN {
		s.TopMonths = s.TopMonths[:summaryTopN]
	}
	return s
}

package anomaly

import (
	"testing"

	"civinigrani/internal/domain"
)

func flag(district string, m int, anomalous bool, score float64) domain.AnomalyFlag {
	return domain.AnomalyFlag{
		PRGIRecord:   domain.PRGIRecord{District: district, Month: month(2024, 1).AddDate(0, m, 0)},
		IsAnomaly:    anomalous,
		AnomalyScore: score,
	}
}

func TestSummarize(t *testing.T) {
	flags := []domain.AnomalyFlag{
		flag("banda", 0, true, -0.7),
		flag("agra", 0, true, -0.6),
		flag("banda", 1, true, -0.8),
		flag("agra", 1, false, -0.4),
	}

	s := Summarize(flags)
	if s.TotalRecords != 4 || s.TotalAnomalies != 3 {
		t.Fatalf("Totals: got %d/%d, want 4/3", s.TotalRecords, s.TotalAnomalies)
	}
	if !approx(s.AnomalyRate, 75, 1e-9) {
		t.Errorf("Rate: got %v, want 75", s.AnomalyRate)
	}
	if !approx(s.AvgAnomalyScore, -0.7, 1e-9) {
		t.Errorf("Avg score: got %v, want -0.7", s.AvgAnomalyScore)
	}

	if len(s.TopDistricts) != 2 || s.TopDistricts[0].District != "banda" || s.TopDistricts[0].Count != 2 {
		t.Errorf("Top districts: got %+v", s.TopDistricts)
	}
	if len(s.TopMonths) != 2 || !s.TopMonths[0].Month.Equal(month(2024, 1)) || s.TopMonths[0].Count != 2 {
		t.Errorf("Top months: got %+v", s.TopMonths)
	}
}

func TestSummarize_TiesAndLimit(t *testing.T) {
	var flags []domain.AnomalyFlag
	for _, d := range []string{"g", "f", "e", "d", "c", "b", "a"} {
		flags = append(flags, flag(d, 0, true, -0.6))
	}

	s := Summarize(flags)
	if len(s.TopDistricts) != 5 {
		t.Fatalf("Expected top 5, got %d", len(s.TopDistricts))
	}
	if s.TopDistricts[0].District != "a" || s.TopDistricts[4].District != "e" {
		t.Errorf("Ties should order by name: %+v", s.TopDistricts)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalRecords != 0 || s.AnomalyRate != 0 || s.AvgAnomalyScore != 0 {
		t.Errorf("Empty summary: got %+v", s)
	}
}

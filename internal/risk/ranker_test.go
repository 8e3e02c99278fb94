package risk

import (
	"math"
	"reflect"
	"testing"
	"time"

	"civinigrani/internal/domain"
)

func month(i int) time.Time {
	return time.Date(2024, time.Month(i), 1, 0, 0, 0, 0, time.UTC)
}

func rec(district string, m int, prgi float64) domain.PRGIRecord {
	return domain.PRGIRecord{District: district, Month: month(m), Allocation: 100, Distribution: 100 * (1 - prgi), PRGI: prgi}
}

func TestRank_UsesOnlyLastThreeMonths(t *testing.T) {
	records := []domain.PRGIRecord{
		rec("agra", 1, 0.9), rec("agra", 2, 0.9),
		rec("agra", 3, 0.1), rec("agra", 4, 0.2), rec("agra", 5, 0.3),
	}

	got := NewRanker(0).Rank(records, 10)
	if len(got) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(got))
	}
	if math.Abs(got[0].AvgPRGI-0.2) > 1e-9 {
		t.Errorf("AvgPRGI: got %v, want 0.2 (mean of last 3 months only)", got[0].AvgPRGI)
	}
	if got[0].LatestPRGI == nil || *got[0].LatestPRGI != 0.3 {
		t.Errorf("LatestPRGI: got %v, want 0.3", got[0].LatestPRGI)
	}
}

func TestRank_OrderingTruncationAndMissingLatest(t *testing.T) {
	records := []domain.PRGIRecord{
		rec("agra", 1, 0.10), rec("agra", 2, 0.10), rec("agra", 3, 0.10),
		rec("banda", 1, 0.50), rec("banda", 2, 0.50), // absent from latest month
		rec("chitrakoot", 2, 0.30), rec("chitrakoot", 3, 0.30),
	}

	got := NewRanker(3).Rank(records, 2)
	if len(got) != 2 {
		t.Fatalf("Expected truncation to 2, got %d", len(got))
	}
	if got[0].District != "banda" || got[1].District != "chitrakoot" {
		t.Errorf("Order: got %s, %s", got[0].District, got[1].District)
	}
	if got[0].LatestPRGI != nil {
		t.Errorf("banda has no latest-month row; LatestPRGI should be nil, got %v", *got[0].LatestPRGI)
	}
}

func TestRank_TiesKeepDistrictOrder(t *testing.T) {
	records := []domain.PRGIRecord{
		rec("zaidpur", 1, 0.2), rec("agra", 1, 0.2), rec("mathura", 1, 0.2),
	}
	got := NewRanker(3).Rank(records, 0)
	want := []string{"agra", "mathura", "zaidpur"}
	for i, w := range want {
		if got[i].District != w {
			t.Errorf("Index %d: got %s, want %s", i, got[i].District, w)
		}
	}
}

func TestRank_Deterministic(t *testing.T) {
	records := []domain.PRGIRecord{
		rec("agra", 1, 0.4), rec("banda", 1, 0.4), rec("etah", 2, 0.1),
		rec("agra", 2, 0.2), rec("banda", 2, 0.2), rec("etah", 1, 0.7),
	}
	r := NewRanker(3)
	first := r.Rank(records, 5)
	second := r.Rank(records, 5)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Rank is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestRank_Empty(t *testing.T) {
	if got := NewRanker(3).Rank(nil, 10); len(got) != 0 {
		t.Errorf("Expected empty result, got %d entries", len(got))
	}
}

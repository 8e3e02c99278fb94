package peerlens

import (
	"errors"
	"math"
	"testing"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/population"
)

var (
	feb = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func rec(district string, month time.Time, alloc, prgi float64) domain.PRGIRecord {
	return domain.PRGIRecord{District: district, Month: month, Allocation: alloc, Distribution: alloc * (1 - prgi), PRGI: prgi}
}

func fixture() ([]domain.PRGIRecord, *population.Table) {
	records := []domain.PRGIRecord{
		rec("agra", feb, 1000, 0.10),
		rec("zaidpur", feb, 1000, 0.20),
		rec("agra", mar, 1000, 0.40),
		rec("banda", mar, 1050, 0.20),
		rec("chitrakoot", mar, 1100, 0.20),
		rec("deoria", mar, 950, 0.20),
		rec("etah", mar, 5000, 0.20),
	}
	pop := population.New(map[string]int64{
		"Agra":       1_000_000,
		"Banda":      1_000_000,
		"Chitrakoot": 1_050_000,
		"Deoria":     950_000,
		"Etah":       1_000_000,
		"Zaidpur":    1_000_000,
	})
	return records, pop
}

func receipts() []domain.GrievanceReceipt {
	return []domain.GrievanceReceipt{{Receipts: 300, Disposal: 200}, {Receipts: 100, Disposal: 100}}
}

func TestAnalyze_ValidComparison(t *testing.T) {
	records, pop := fixture()
	e := New(records, pop, receipts(), DefaultOptions())

	got, err := e.Analyze(" AGRA ")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !got.Valid || got.PeerCount != 3 {
		t.Fatalf("Expected valid with 3 peers, got valid=%v count=%d note=%q", got.Valid, got.PeerCount, got.Note)
	}

	if !got.PRGIRelative.Defined || math.Abs(got.PRGIRelative.Value-2.0) > 1e-9 {
		t.Errorf("PRGI relative: got %v, want 2.0", got.PRGIRelative)
	}
	if got.Interpretation[domain.MetricDeliveryGap] != domain.VerdictWorse {
		t.Errorf("Delivery gap: got %q", got.Interpretation[domain.MetricDeliveryGap])
	}
	if got.Interpretation[domain.MetricGrievancePressure] != domain.VerdictComparable {
		t.Errorf("Grievance pressure: got %q (ratio %v)", got.Interpretation[domain.MetricGrievancePressure], got.GrievanceRelative)
	}
	if got.Interpretation[domain.MetricResolutionCapacity] != domain.VerdictComparable {
		t.Errorf("Resolution capacity: got %q", got.Interpretation[domain.MetricResolutionCapacity])
	}

	want := []string{"Banda", "Chitrakoot", "Deoria"}
	if len(got.Peers) != len(want) {
		t.Fatalf("Peers: got %v, want %v", got.Peers, want)
	}
	for i := range want {
		if got.Peers[i] != want[i] {
			t.Errorf("Peer %d: got %s, want %s", i, got.Peers[i], want[i])
		}
	}
}

func TestAnalyze_MinPeersGate(t *testing.T) {
	records, pop := fixture()

	opts := DefaultOptions()
	opts.MinPeers = 4
	got, err := New(records, pop, nil, opts).Analyze("agra")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Valid {
		t.Fatal("Expected invalid comparison with 3 peers and min 4")
	}
	if got.PeerCount != 3 {
		t.Errorf("PeerCount: got %d, want 3", got.PeerCount)
	}
	want := "Only 3 comparable peers found. Adjust tolerances or reduce minimum peers."
	if got.Note != want {
		t.Errorf("Note: got %q, want %q", got.Note, want)
	}
	if got.Interpretation != nil || got.Peers != nil {
		t.Error("Invalid comparison must not carry ratios or peers")
	}
}

func TestAnalyze_TwoPeersInvalidThreeValid(t *testing.T) {
	records, pop := fixture()
	var withoutDeoria []domain.PRGIRecord
	for _, r := range records {
		if r.District != "deoria" {
			withoutDeoria = append(withoutDeoria, r)
		}
	}

	got, _ := New(withoutDeoria, pop, nil, DefaultOptions()).Analyze("agra")
	if got.Valid || got.PeerCount != 2 {
		t.Errorf("Expected invalid with 2 peers, got valid=%v count=%d", got.Valid, got.PeerCount)
	}

	got, _ = New(records, pop, nil, DefaultOptions()).Analyze("agra")
	if !got.Valid || got.PeerCount != 3 {
		t.Errorf("Expected valid with 3 peers, got valid=%v count=%d", got.Valid, got.PeerCount)
	}
}

func TestAnalyze_PopulationFiltersPeers(t *testing.T) {
	records, _ := fixture()
	pop := population.New(map[string]int64{
		"agra":       1_000_000,
		"banda":      2_000_000, // outside alpha
		"chitrakoot": 1_000_000,
		// deoria missing: cannot satisfy the population test
	})

	got, err := New(records, pop, nil, DefaultOptions()).Analyze("agra")
	if err != nil {
		t.Fatal(err)
	}
	if got.PeerCount != 1 {
		t.Errorf("Expected only chitrakoot as peer, got %d", got.PeerCount)
	}
}

func TestAnalyze_AllocationOnlyFallback(t *testing.T) {
	records, _ := fixture()
	got, err := New(records, nil, nil, DefaultOptions()).Analyze("agra")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Valid || got.PeerCount != 3 {
		t.Fatalf("Expected allocation-only match on 3 peers, got valid=%v count=%d", got.Valid, got.PeerCount)
	}
	if got.GrievanceRelative.Defined {
		t.Errorf("Density without population must be undefined, got %v", got.GrievanceRelative)
	}
	if got.Interpretation[domain.MetricGrievancePressure] != domain.VerdictInsufficient {
		t.Errorf("Grievance pressure: got %q", got.Interpretation[domain.MetricGrievancePressure])
	}
	if got.ResolutionRelative.Value != 1 {
		t.Errorf("Default resolution ratio: got %v, want 1", got.ResolutionRelative)
	}
}

func TestAnalyze_ZeroMedianIsUndefined(t *testing.T) {
	records := []domain.PRGIRecord{
		rec("agra", mar, 1000, 0.3),
		rec("banda", mar, 1000, 0),
		rec("chitrakoot", mar, 1000, 0),
		rec("deoria", mar, 1000, 0),
	}
	got, err := New(records, nil, nil, DefaultOptions()).Analyze("agra")
	if err != nil {
		t.Fatal(err)
	}
	if got.PRGIRelative.Defined {
		t.Errorf("Zero peer median must be undefined, got %v", got.PRGIRelative)
	}
	if got.PRGIRelative.String() != "n/a" {
		t.Errorf("String: got %q", got.PRGIRelative.String())
	}
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := New(nil, nil, nil, DefaultOptions()).Analyze("agra")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if msg := UserMessage("agra", err); msg != "No data available" {
		t.Errorf("UserMessage: got %q", msg)
	}

	records, pop := fixture()
	_, err = New(records, pop, nil, DefaultOptions()).Analyze("Gotham")
	if !errors.Is(err, ErrDistrictNotFound) {
		t.Errorf("Expected ErrDistrictNotFound, got %v", err)
	}
	if msg := UserMessage("Gotham", err); msg != "District 'Gotham' not found" {
		t.Errorf("UserMessage: got %q", msg)
	}
}

func TestAnalyze_UsesGlobalLatestMonth(t *testing.T) {
	records, pop := fixture()
	e := New(records, pop, nil, DefaultOptions())

	if _, err := e.Analyze("zaidpur"); !errors.Is(err, ErrDistrictNotFound) {
		t.Errorf("zaidpur only reports in February and should be absent, got %v", err)
	}

	want := []string{"agra", "banda", "chitrakoot", "deoria", "etah"}
	got := e.Districts()
	if len(got) != len(want) {
		t.Fatalf("Districts: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("District %d: got %s, want %s", i, got[i], want[i])
		}
	}

	all := e.AnalyzeAll()
	if len(all) != 5 {
		t.Errorf("AnalyzeAll: got %d results", len(all))
	}
	if all[4].District != "etah" || all[4].Valid {
		t.Errorf("etah has no allocation peers: %+v", all[4])
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		ratio         domain.Ratio
		lowerIsBetter bool
		want          string
	}{
		{domain.DefinedRatio(0.89), true, domain.VerdictBetter},
		{domain.DefinedRatio(1.11), true, domain.VerdictWorse},
		{domain.DefinedRatio(0.90), true, domain.VerdictComparable},
		{domain.DefinedRatio(1.10), true, domain.VerdictComparable},
		{domain.DefinedRatio(1.2), false, domain.VerdictBetter},
		{domain.DefinedRatio(0.8), false, domain.VerdictWorse},
		{domain.UndefinedRatio, true, domain.VerdictInsufficient},
	}
	for _, tc := range cases {
		if got := Classify(tc.ratio, tc.lowerIsBetter); got != tc.want {
			t.Errorf("Classify(%v, %v): got %q, want %q", tc.ratio, tc.lowerIsBetter, got, tc.want)
		}
	}
}

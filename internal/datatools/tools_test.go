package datatools

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"civinigrani/internal/domain"
)

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

func records() []domain.PRGIRecord {
	return []domain.PRGIRecord{
		{District: "agra", Month: month(2024, 9), Allocation: 1000, Distribution: 900, PRGI: 0.10},
		{District: "agra", Month: month(2024, 10), Allocation: 1000, Distribution: 600, PRGI: 0.40},
		{District: "sant kabir nagar", Month: month(2024, 9), Allocation: 1000, Distribution: 500, PRGI: 0.50},
		{District: "sant kabir nagar", Month: month(2024, 10), Allocation: 1000, Distribution: 800, PRGI: 0.2},
		{District: "banda", Month: month(2024, 10), Allocation: 1000, Distribution: 876.4, PRGI: 0.1236},
	}
}

func TestTopPRGIDistricts(t *testing.T) {
	resp := New(records(), nil).TopPRGIDistricts(2, "")
	if resp.Error != "" {
		t.Fatalf("Unexpected error: %s", resp.Error)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].District != "Agra" || resp.Results[0].PRGI != 0.4 {
		t.Errorf("First: got %+v", resp.Results[0])
	}
	if resp.Results[1].District != "Sant Kabir Nagar" {
		t.Errorf("Second: got %+v", resp.Results[1])
	}
	c := resp.Citation
	if c.Source != "PDS Distribution Data" || c.Period != "Latest available" || c.DistrictsAnalyzed != 3 || c.DataPoints != 5 {
		t.Errorf("Citation: got %+v", c)
	}
}

func TestTopPRGIDistricts_PeriodFilterAndRounding(t *testing.T) {
	resp := New(records(), nil).TopPRGIDistricts(5, "2024-09")
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 September districts, got %d", len(resp.Results))
	}
	if resp.Results[0].District != "Sant Kabir Nagar" || resp.Results[0].PRGI != 0.5 {
		t.Errorf("First: got %+v", resp.Results[0])
	}
	if resp.Citation.Period != "2024-09" {
		t.Errorf("Period: got %q", resp.Citation.Period)
	}

	banda := New(records(), nil).TopPRGIDistricts(5, "2024-10").Results[2]
	if banda.PRGI != 0.124 {
		t.Errorf("Rounded PRGI: got %v, want 0.124", banda.PRGI)
	}
}

func TestTopPRGIDistricts_NoData(t *testing.T) {
	resp := New(nil, nil).TopPRGIDistricts(5, "")
	if resp.Error != "No PRGI data available" || resp.Citation != nil {
		t.Errorf("Got %+v", resp)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"citation":null`) {
		t.Errorf("Error responses should carry a null citation: %s", b)
	}
}

func TestGrievanceSpikes(t *testing.T) {
	receipts := []domain.GrievanceReceipt{
		{Month: month(2024, 1), Receipts: 100},
		{Month: month(2024, 2), Receipts: 90},
		{Month: month(2024, 2), Receipts: 60},
		{Month: month(2024, 3), Receipts: 160},
		{Receipts: 999},
	}

	resp := New(nil, receipts).GrievanceSpikes(DefaultSpikeThresholdPct)
	if resp.Error != "" {
		t.Fatalf("Unexpected error: %s", resp.Error)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("Expected one spike, got %+v", resp.Results)
	}
	got := resp.Results[0]
	if got.Month != "2024-02-01" || got.Receipts != 150 || got.IncreasePct != 50 {
		t.Errorf("Spike: got %+v", got)
	}
	if resp.Citation.MonthsAnalyzed != 3 || resp.Citation.Threshold != "30% increase" {
		t.Errorf("Citation: got %+v", resp.Citation)
	}

	if r := New(nil, nil).GrievanceSpikes(30); r.Error != "No grievance data available" {
		t.Errorf("Empty: got %+v", r)
	}
	if r := New(nil, []domain.GrievanceReceipt{{Receipts: 5}}).GrievanceSpikes(30); r.Error != "Insufficient grievance data" {
		t.Errorf("No months: got %+v", r)
	}
}

func TestExplainPRGIChange(t *testing.T) {
	tools := New(records(), nil)

	resp := tools.ExplainPRGIChange("AGRA", "")
	if resp.Error != "" {
		t.Fatalf("Unexpected error: %s", resp.Error)
	}
	e := resp.Results
	if e.District != "Agra" || e.CurrentPRGI != 0.4 || e.Change != 0.3 || e.Trend != "increasing (worsening)" {
		t.Errorf("Explanation: got %+v", e)
	}
	if len(e.RecentMonths) != 2 || e.RecentMonths[0].Month != "2024-09" {
		t.Errorf("Recent months: got %+v", e.RecentMonths)
	}
	if !strings.HasPrefix(e.Narrative, "Agra: Critical failure.") {
		t.Errorf("Narrative: got %q", e.Narrative)
	}

	improving := tools.ExplainPRGIChange("sant kabir nagar", "").Results
	if improving.Trend != "decreasing (improving)" {
		t.Errorf("Trend: got %q", improving.Trend)
	}

	first := tools.ExplainPRGIChange("agra", "2024-09").Results
	if first.Trend != "stable" || first.Change != 0 {
		t.Errorf("First month has no predecessor: got %+v", first)
	}

	if r := tools.ExplainPRGIChange("gotham", ""); r.Error != "No data found for district: gotham" {
		t.Errorf("Unknown district: got %q", r.Error)
	}
	if r := tools.ExplainPRGIChange("agra", "2023-01"); r.Error != "No data for 2023-01 in agra" {
		t.Errorf("Unknown month: got %q", r.Error)
	}
}

func TestStateSummary(t *testing.T) {
	resp := New(records(), nil).StateSummary("")
	if resp.Error != "" {
		t.Fatalf("Unexpected error: %s", resp.Error)
	}
	s := resp.Results
	if s.TotalDistricts != 3 || s.Months != 2 {
		t.Errorf("Counts: got %+v", s)
	}
	if s.WorstPRGI != 0.5 || s.BestPRGI != 0.1 || s.MedianPRGI != 0.2 {
		t.Errorf("Spread: got %+v", s)
	}
	want := RiskClassification{HighRisk: 2, MediumRisk: 1, LowRisk: 2}
	if s.RiskClassification != want {
		t.Errorf("Risk: got %+v, want %+v", s.RiskClassification, want)
	}
	if resp.Citation.Year != "All available" || resp.Citation.DataPoints != 5 {
		t.Errorf("Citation: got %+v", resp.Citation)
	}

	if r := New(records(), nil).StateSummary("1999"); r.Error != "No data for year 1999" {
		t.Errorf("Year filter: got %q", r.Error)
	}
}

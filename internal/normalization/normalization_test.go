package normalization

import (
	"testing"
	"time"

	"civinigrani/internal/ingestion"
)

func TestNormalizeColumns(t *testing.T) {
	src := &ingestion.Table{Columns: []string{" State_Name ", "DISTRICT_NAME", "Month"}}
	got := NormalizeColumns(src)

	want := []string{"state_name", "district_name", "month"}
	for i, w := range want {
		if got.Columns[i] != w {
			t.Errorf("column %d: got %q, want %q", i, got.Columns[i], w)
		}
	}
	if src.Columns[0] != " State_Name " {
		t.Error("NormalizeColumns must not mutate the source table")
	}
}

func TestResolve_PrefersNameColumns(t *testing.T) {
	cols := []string{"state_code", "state_name", "district_code", "district_name", "month"}
	s := Resolve(cols)

	if s.State != 1 {
		t.Errorf("State: got %d, want 1 (state_name)", s.State)
	}
	if s.District != 3 {
		t.Errorf("District: got %d, want 3 (district_name)", s.District)
	}
}

func TestResolve_LooseFallback(t *testing.T) {
	cols := []string{"state", "district", "month"}
	s := Resolve(cols)
	if s.State != 0 || s.District != 1 {
		t.Errorf("Loose match failed: state=%d district=%d", s.State, s.District)
	}
}

func TestResolve_QuantityColumns(t *testing.T) {
	tests := []struct {
		name      string
		cols      []string
		wantAlloc []int
		wantDist  []int
	}{
		{
			name:      "strict totals",
			cols:      []string{"total_wheat_allocated", "total_rice_allocated", "alloc_note", "total_wheat_distributed", "total_rice_distributed"},
			wantAlloc: []int{0, 1},
			wantDist:  []int{3, 4},
		},
		{
			name:      "loose when no totals",
			cols:      []string{"wheat_allocated", "wheat_distributed"},
			wantAlloc: []int{0},
			wantDist:  []int{1},
		},
		{
			name:      "loose on both sides when only one side has totals",
			cols:      []string{"total_allocated", "wheat_distributed"},
			wantAlloc: []int{0},
			wantDist:  []int{1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Resolve(tc.cols)
			if !equalInts(s.Allocation, tc.wantAlloc) {
				t.Errorf("Allocation: got %v, want %v", s.Allocation, tc.wantAlloc)
			}
			if !equalInts(s.Distribution, tc.wantDist) {
				t.Errorf("Distribution: got %v, want %v", s.Distribution, tc.wantDist)
			}
		})
	}
}

func TestSchema_Usable(t *testing.T) {
	if Resolve([]string{"state_name", "month", "total_allocated"}).Usable() {
		t.Error("Schema without district column must not be usable")
	}
	if Resolve([]string{"district_name", "month"}).Usable() {
		t.Error("Schema without quantity columns must not be usable")
	}
	if !Resolve([]string{"district_name", "month", "total_allocated", "total_distributed"}).Usable() {
		t.Error("Complete schema should be usable")
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1000", 1000},
		{" 1,234.5 ", 1234.5},
		{"", 0},
		{"NA", 0},
		{"-", 0},
		{"NaN", 0},
		{"-12", -12},
	}
	for _, tc := range tests {
		if got := ParseQuantity(tc.in); got != tc.want {
			t.Errorf("ParseQuantity(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	if v, ok := ParseCount("42"); !ok || v != 42 {
		t.Errorf("ParseCount(42) = %d, %v", v, ok)
	}
	if v, ok := ParseCount("12.0"); !ok || v != 12 {
		t.Errorf("ParseCount(12.0) = %d, %v", v, ok)
	}
	if _, ok := ParseCount("many"); ok {
		t.Error("ParseCount should reject non-numeric input")
	}
}

func TestParseMonth(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-01", "2024-01", "2024-01-17", "2024/01/31", "17-01-2024", "2024-01-15 10:30:00", "Jan-2024"} {
		got, ok := ParseMonth(in)
		if !ok {
			t.Errorf("ParseMonth(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseMonth(%q) = %v, want %v", in, got, want)
		}
	}

	if _, ok := ParseMonth("not a date"); ok {
		t.Error("ParseMonth should reject garbage")
	}
}

func TestParseYearMonth(t *testing.T) {
	got, ok := ParseYearMonth("2023", "7")
	if !ok || !got.Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseYearMonth = %v, %v", got, ok)
	}
	if _, ok := ParseYearMonth("2023", "13"); ok {
		t.Error("month 13 must be rejected")
	}
}

func TestTitleCase(t *testing.T) {
	if got := TitleCase("sant kabir nagar"); got != "Sant Kabir Nagar" {
		t.Errorf("TitleCase = %q", got)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

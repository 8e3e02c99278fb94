package normalization

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"civinigrani/internal/domain"
)

// ParseQuantity coerces a cell to a float. Anything unparseable is zero.
func ParseQuantity(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseCount coerces a cell to a non-negative integer count.
// ok is false for blank or non-numeric cells so callers can drop the row.
func ParseCount(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	return int64(math.Round(v)), true
}

var monthLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006/01/02",
	"2006/01",
	"02-01-2006",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Jan-2006",
	"Jan 2006",
	"January 2006",
}

// ParseMonth parses a date-like cell and truncates it to the first of the month.
func ParseMonth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.FirstOfMonth(t), true
		}
	}
	return time.Time{}, false
}

// ParseYearMonth combines separate year and month cells.
func ParseYearMonth(year, month string) (time.Time, bool) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC), true
}

// ParseDDMMYYYY parses the date embedded in legacy report filenames.
func ParseDDMMYYYY(s string) (time.Time, bool) {
	t, err := time.Parse("02-01-2006", s)
	if err != nil {
		return time.Time{}, false
	}
	return domain.FirstOfMonth(t), true
}

// NormalizeName lower-cases and trims a district or state name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TitleCase renders a normalized name for display ("sant kabir nagar" -> "Sant Kabir Nagar").
func TitleCase(s string) string {
	// Casers are stateful; one per call keeps this safe for concurrent use.
	return cases.Title(language.Und).String(s)
}

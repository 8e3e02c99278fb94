package domain

import (
	"fmt"
	"time"
)

// MonthLayout is the canonical textual form of a district-month key.
const MonthLayout = "2006-01"

// PRGIRecord is one (district, month) row of the Policy Reality Gap Index table.
// Derived fresh on every pipeline run; raw source files remain authoritative.
type PRGIRecord struct {
	District     string    // normalized: lower-case, trimmed
	Month        time.Time // first day of month, UTC
	Allocation   float64   // summed allocation quantity, > 0
	Distribution float64   // summed distribution quantity
	PRGI         float64   // clip(1 - distribution/allocation, 0, 1)
}

// Key returns the (district, month) join key.
func (r PRGIRecord) Key() string {
	return fmt.Sprintf("%s|%s", r.District, r.Month.Format(MonthLayout))
}

// MonthIndex returns year*12 + month, a monotonically increasing month number.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}

// FirstOfMonth truncates t to the first day of its month in UTC.
func FirstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ComputePRGI returns the clipped gap index. ok is false when allocation <= 0.
func ComputePRGI(allocation, distribution float64) (prgi float64, ok bool) {
	if allocation <= 0 {
		return 0, false
	}
	prgi = 1 - distribution/allocation
	if prgi < 0 {
		prgi = 0
	}
	if prgi > 1 {
		prgi = 1
	}
	return prgi, true
}

// Valid reports whether r carries a district and a month.
func (r PRGIRecord) Valid() bool {
	return r.District != "" && !r.Month.IsZero()
}

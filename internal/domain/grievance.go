package domain

import (
	"fmt"
	"time"
)

// GrievanceSignal is one (month[, district, source]) grievance volume observation.
type GrievanceSignal struct {
	Month    time.Time // first day of month, UTC
	District string    // empty for state-level series
	Source   string    // optional upstream tag
	Signals  int64     // non-negative complaint count
}

// Key returns the (month, district, source) storage key.
func (g GrievanceSignal) Key() string {
	return fmt.Sprintf("%s|%s|%s", g.Month.Format(MonthLayout), g.District, g.Source)
}

// Valid reports whether g carries a month and a non-negative count.
func (g GrievanceSignal) Valid() bool {
	return !g.Month.IsZero() && g.Signals >= 0
}

// GrievanceReceipt is a CPGRAMS-style receipts/disposal summary row.
type GrievanceReceipt struct {
	Month    time.Time // zero when the export carries no month
	Receipts float64
	Disposal float64
}

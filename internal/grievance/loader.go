// Package grievance normalizes grievance exports into monthly signal series.
package grievance

import (
	"regexp"
	"sort"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/ingestion"
	"civinigrani/internal/normalization"
)

// Schema identifies which upstream export format a table follows.
type Schema string

const (
	SchemaStructured Schema = "STRUCTURED" // month + grievance_signals
	SchemaLegacy     Schema = "LEGACY"     // source_file with DD-MM-YYYY
	SchemaUnknown    Schema = "UNKNOWN"
)

const (
	colMonth      = "month"
	colSignals    = "grievance_signals"
	colSource     = "source"
	colSourceFile = "source_file"
	colReceipts   = "receipts"
	colDisposal   = "disposal"
)

var filenameDate = regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`)

// DetectSchema picks the format by column presence. Structured wins when both match.
func DetectSchema(columns []string) Schema {
	has := func(name string) bool {
		for _, c := range columns {
			if c == name {
				return true
			}
		}
		return false
	}
	switch {
	case has(colMonth) && has(colSignals):
		return SchemaStructured
	case has(colSourceFile):
		return SchemaLegacy
	default:
		return SchemaUnknown
	}
}

// Load normalizes either export format into a month-sorted signal series.
func Load(t *ingestion.Table) domain.Result[[]domain.GrievanceSignal] {
	if t.Empty() {
		return domain.Empty[[]domain.GrievanceSignal]("grievance table is empty")
	}
	nt := normalization.NormalizeColumns(t)

	var signals []domain.GrievanceSignal
	switch DetectSchema(nt.Columns) {
	case SchemaStructured:
		signals = loadStructured(nt)
	case SchemaLegacy:
		signals = loadLegacy(nt)
	default:
		return domain.Empty[[]domain.GrievanceSignal]("no month/grievance_signals or source_file column")
	}

	if len(signals) == 0 {
		return domain.Empty[[]domain.GrievanceSignal]("no parseable grievance rows")
	}
	return domain.OK(signals)
}

func loadStructured(t *ingestion.Table) []domain.GrievanceSignal {
	monthIdx := t.Index(colMonth)
	signalIdx := t.Index(colSignals)
	sourceIdx := t.Index(colSource)
	districtIdx := normalization.DistrictColumn.Resolve(t.Columns)

	var out []domain.GrievanceSignal
	for i := range t.Rows {
		month, ok := normalization.ParseMonth(t.Value(i, monthIdx))
		if !ok {
			continue
		}
		count, ok := normalization.ParseCount(t.Value(i, signalIdx))
		if !ok {
			continue
		}
		out = append(out, domain.GrievanceSignal{
			Month:    month,
			District: normalization.NormalizeName(t.Value(i, districtIdx)),
			Source:   t.Value(i, sourceIdx),
			Signals:  count,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// loadLegacy counts rows per month extracted from the archived report filename.
// The legacy format has no count field, so row volume is the signal.
func loadLegacy(t *ingestion.Table) []domain.GrievanceSignal {
	fileIdx := t.Index(colSourceFile)

	counts := make(map[time.Time]int64)
	for i := range t.Rows {
		m := filenameDate.FindString(t.Value(i, fileIdx))
		if m == "" {
			continue
		}
		month, ok := normalization.ParseDDMMYYYY(m)
		if !ok {
			continue
		}
		counts[month]++
	}

	out := make([]domain.GrievanceSignal, 0, len(counts))
	for m, c := range counts {
		out = append(out, domain.GrievanceSignal{Month: m, Signals: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// TopLine sums signals across sources and districts per month.
func TopLine(signals []domain.GrievanceSignal) []domain.GrievanceSignal {
	sums := make(map[time.Time]int64)
	for _, s := range signals {
		sums[s.Month] += s.Signals
	}
	out := make([]domain.GrievanceSignal, 0, len(sums))
	for m, c := range sums {
		out = append(out, domain.GrievanceSignal{Month: m, Signals: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// LoadReceipts reads a receipts/disposal summary. Non-numeric cells count as zero.
func LoadReceipts(t *ingestion.Table) domain.Result[[]domain.GrievanceReceipt] {
	if t.Empty() {
		return domain.Empty[[]domain.GrievanceReceipt]("receipts table is empty")
	}
	nt := normalization.NormalizeColumns(t)

	receiptsIdx := nt.Index(colReceipts)
	disposalIdx := nt.Index(colDisposal)
	if receiptsIdx < 0 && disposalIdx < 0 {
		return domain.Empty[[]domain.GrievanceReceipt]("no receipts or disposal column")
	}
	monthIdx := nt.Index(colMonth)

	out := make([]domain.GrievanceReceipt, 0, nt.Len())
	for i := range nt.Rows {
		r := domain.GrievanceReceipt{
			Receipts: normalization.ParseQuantity(nt.Value(i, receiptsIdx)),
			Disposal: normalization.ParseQuantity(nt.Value(i, disposalIdx)),
		}
		if m, ok := normalization.ParseMonth(nt.Value(i, monthIdx)); ok {
			r.Month = m
		}
		out = append(out, r)
	}
	return domain.OK(out)
}

// MonthlyReceipts sums receipts per month, skipping rows without a month.
func MonthlyReceipts(receipts []domain.GrievanceReceipt) []domain.GrievanceReceipt {
	sums := make(map[time.Time]*domain.GrievanceReceipt)
	for _, r := range receipts {
		if r.Month.IsZero() {
			continue
		}
		s, ok := sums[r.Month]
		if !ok {
			s = &domain.GrievanceReceipt{Month: r.Month}
			sums[r.Month] = s
		}
		s.Receipts += r.Receipts
		s.Disposal += r.Disposal
	}
	out := make([]domain.GrievanceReceipt, 0, len(sums))
	for _, s := range sums {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

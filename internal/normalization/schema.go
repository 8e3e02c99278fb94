package normalization

import "civinigrani/internal/ingestion"

// Schema maps logical fields of a PDS export to column positions. -1 means absent.
type Schema struct {
	State        int
	District     int
	Month        int
	Year         int
	Allocation   []int
	Distribution []int
}

// Resolve locates logical columns in already-normalized headers.
// Quantity columns use the strict "total" match only when both the allocation
// and distribution sides have one; otherwise both fall back to the loose match.
func Resolve(columns []string) Schema {
	s := Schema{
		State:    StateColumn.Resolve(columns),
		District: DistrictColumn.Resolve(columns),
		Month:    MonthColumn.Resolve(columns),
		Year:     YearColumn.Resolve(columns),
	}

	alloc := AllocationColumns.resolveAt(columns, 0)
	dist := DistributionColumns.resolveAt(columns, 0)
	if len(alloc) == 0 || len(dist) == 0 {
		alloc = AllocationColumns.resolveAt(columns, 1)
		dist = DistributionColumns.resolveAt(columns, 1)
	}
	s.Allocation = alloc
	s.Distribution = dist
	return s
}

// Usable reports whether the schema can feed the PRGI engine.
func (s Schema) Usable() bool {
	return s.District >= 0 && s.Month >= 0 && len(s.Allocation) > 0
}

// Row is one normalized PDS row.
type Row struct {
	State        string
	District     string
	MonthRaw     string
	YearRaw      string
	Allocation   float64
	Distribution float64
}

// Rows projects a normalized table through the schema. Quantity cells are
// summed per row with non-numeric values counted as zero.
func (s Schema) Rows(t *ingestion.Table) []Row {
	out := make([]Row, 0, t.Len())
	for i := range t.Rows {
		r := Row{
			State:    t.Value(i, s.State),
			District: NormalizeName(t.Value(i, s.District)),
			MonthRaw: t.Value(i, s.Month),
			YearRaw:  t.Value(i, s.Year),
		}
		for _, c := range s.Allocation {
			r.Allocation += ParseQuantity(t.Value(i, c))
		}
		for _, c := range s.Distribution {
			r.Distribution += ParseQuantity(t.Value(i, c))
		}
		out = append(out, r)
	}
	return out
}

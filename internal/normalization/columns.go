package normalization

import (
	"sort"
	"strings"

	"civinigrani/internal/ingestion"
)

// Matcher is one candidate predicate for a logical column.
// Lower Priority wins.
type Matcher struct {
	Priority int
	Match    func(column string) bool
}

// Rule is a declarative, priority-ordered list of matchers for one logical column.
type Rule []Matcher

// containsAll matches a normalized header containing every given fragment.
func containsAll(fragments ...string) func(string) bool {
	return func(column string) bool {
		for _, f := range fragments {
			if !strings.Contains(column, f) {
				return false
			}
		}
		return true
	}
}

// exact matches a normalized header by equality.
func exact(name string) func(string) bool {
	return func(column string) bool { return column == name }
}

// Column rules for heterogeneous government exports.
var (
	StateColumn = Rule{
		{Priority: 0, Match: containsAll("state", "name")},
		{Priority: 1, Match: containsAll("state")},
	}
	DistrictColumn = Rule{
		{Priority: 0, Match: containsAll("district", "name")},
		{Priority: 1, Match: containsAll("district")},
	}
	MonthColumn = Rule{
		{Priority: 0, Match: exact("month")},
	}
	YearColumn = Rule{
		{Priority: 0, Match: exact("year")},
	}
	AllocationColumns = Rule{
		{Priority: 0, Match: containsAll("alloc", "total")},
		{Priority: 1, Match: containsAll("alloc")},
	}
	DistributionColumns = Rule{
		{Priority: 0, Match: containsAll("distrib", "total")},
		{Priority: 1, Match: containsAll("distrib")},
	}
)

// ordered returns the matchers sorted by priority, stable on declaration order.
func (r Rule) ordered() []Matcher {
	out := append([]Matcher(nil), r...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Resolve returns the index of the first column satisfying the best matcher, or -1.
func (r Rule) Resolve(columns []string) int {
	for _, m := range r.ordered() {
		for i, c := range columns {
			if m.Match(c) {
				return i
			}
		}
	}
	return -1
}

// resolveAt returns all columns satisfying matchers at exactly the given priority.
func (r Rule) resolveAt(columns []string, priority int) []int {
	var out []int
	for _, m := range r.ordered() {
		if m.Priority == priority {
			out = append(out, matchAll(m, columns)...)
		}
	}
	return out
}

func matchAll(m Matcher, columns []string) []int {
	var idx []int
	for i, c := range columns {
		if m.Match(c) {
			idx = append(idx, i)
		}
	}
	return idx
}

// NormalizeColumns returns a copy of t with lower-cased, trimmed headers.
func NormalizeColumns(t *ingestion.Table) *ingestion.Table {
	out := t.Clone()
	if out == nil {
		return &ingestion.Table{}
	}
	for i, c := range out.Columns {
		out.Columns[i] = NormalizeHeader(c)
	}
	return out
}

// NormalizeHeader lower-cases and trims a single header.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Package prgi computes the Policy Reality Gap Index from raw PDS exports.
package prgi

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"civinigrani/internal/domain"
	"civinigrani/internal/ingestion"
	"civinigrani/internal/normalization"
)

// DefaultTargetState is the state the pipeline filters to when none is configured.
const DefaultTargetState = "Uttar Pradesh"

// Stats counts what a compute pass kept and dropped.
type Stats struct {
	RowsIn         int
	RowsOtherState int
	RowsBadMonth   int
	RowsNoDistrict int
	GroupsZeroBase int // (district, month) groups with allocation <= 0
	Records        int
}

// Dropped returns the number of input rows that did not reach aggregation.
func (s Stats) Dropped() int {
	return s.RowsOtherState + s.RowsBadMonth + s.RowsNoDistrict
}

// Engine aggregates allocation and distribution per (district, month).
type Engine struct {
	targetState string
	logger      *zap.Logger
}

// NewEngine creates an engine filtering to targetState.
func NewEngine(targetState string) *Engine {
	if targetState == "" {
		targetState = DefaultTargetState
	}
	return &Engine{targetState: targetState, logger: zap.NewNop()}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(l *zap.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// TargetState returns the configured state filter.
func (e *Engine) TargetState() string {
	return e.targetState
}

// Compute runs the engine and discards stats.
func (e *Engine) Compute(t *ingestion.Table) domain.Result[[]domain.PRGIRecord] {
	res, _ := e.ComputeWithStats(t)
	return res
}

type groupKey struct {
	month    time.Time
	district string
}

type totals struct {
	allocation   float64
	distribution float64
}

// ComputeWithStats runs the engine. It never panics: input-shape problems
// yield an Empty result and unexpected failures an Error result.
func (e *Engine) ComputeWithStats(t *ingestion.Table) (res domain.Result[[]domain.PRGIRecord], stats Stats) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("prgi compute panicked", zap.Any("panic", r))
			res = domain.Failed[[]domain.PRGIRecord](domain.KindInternal, fmt.Errorf("prgi compute: %v", r))
		}
	}()

	if t.Empty() {
		return domain.Empty[[]domain.PRGIRecord]("input table is empty"), stats
	}

	nt := normalization.NormalizeColumns(t)
	schema := normalization.Resolve(nt.Columns)
	switch {
	case schema.District < 0:
		return domain.Empty[[]domain.PRGIRecord]("no district column"), stats
	case schema.Month < 0:
		return domain.Empty[[]domain.PRGIRecord]("no month column"), stats
	case len(schema.Allocation) == 0:
		return domain.Empty[[]domain.PRGIRecord]("no allocation columns"), stats
	}

	target := normalization.NormalizeName(e.targetState)
	groups := make(map[groupKey]*totals)
	matched := 0

	for _, r := range schema.Rows(nt) {
		stats.RowsIn++

		if schema.State >= 0 && normalization.NormalizeName(r.State) != target {
			stats.RowsOtherState++
			continue
		}
		matched++

		month, ok := normalization.ParseMonth(r.MonthRaw)
		if !ok && schema.Year >= 0 {
			month, ok = normalization.ParseYearMonth(r.YearRaw, r.MonthRaw)
		}
		if !ok {
			stats.RowsBadMonth++
			continue
		}
		if r.District == "" {
			stats.RowsNoDistrict++
			continue
		}

		k := groupKey{month: month, district: r.District}
		g, exists := groups[k]
		if !exists {
			g = &totals{}
			groups[k] = g
		}
		g.allocation += r.Allocation
		g.distribution += r.Distribution
	}

	if matched == 0 {
		return domain.Empty[[]domain.PRGIRecord](fmt.Sprintf("no rows for state %q", e.targetState)), stats
	}

	records := make([]domain.PRGIRecord, 0, len(groups))
	for k, g := range groups {
		prgi, ok := domain.ComputePRGI(g.allocation, g.distribution)
		if !ok {
			stats.GroupsZeroBase++
			continue
		}
		records = append(records, domain.PRGIRecord{
			District:     k.district,
			Month:        k.month,
			Allocation:   g.allocation,
			Distribution: g.distribution,
			PRGI:         prgi,
		})
	}
	SortRecords(records)
	stats.Records = len(records)

	e.logger.Debug("prgi computed",
		zap.Int("rows_in", stats.RowsIn),
		zap.Int("rows_dropped", stats.Dropped()),
		zap.Int("zero_base_groups", stats.GroupsZeroBase),
		zap.Int("records", stats.Records),
	)

	if len(records) == 0 {
		return domain.Empty[[]domain.PRGIRecord]("no district-month with positive allocation"), stats
	}
	return domain.OK(records), stats
}

// SortRecords orders records by (month ASC, district ASC) in place.
func SortRecords(records []domain.PRGIRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Month.Equal(records[j].Month) {
			return records[i].Month.Before(records[j].Month)
		}
		return records[i].District < records[j].District
	})
}

// Months returns the distinct months present, ascending.
func Months(records []domain.PRGIRecord) []time.Time {
	seen := make(map[time.Time]struct{})
	var months []time.Time
	for _, r := range records {
		if _, ok := seen[r.Month]; ok {
			continue
		}
		seen[r.Month] = struct{}{}
		months = append(months, r.Month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// LatestPerDistrict returns each district's most recent record, sorted by district.
func LatestPerDistrict(records []domain.PRGIRecord) []domain.PRGIRecord {
	latest := make(map[string]domain.PRGIRecord)
	for _, r := range records {
		if cur, ok := latest[r.District]; !ok || r.Month.After(cur.Month) {
			latest[r.District] = r
		}
	}
	out := make([]domain.PRGIRecord, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out
}

// History returns one district's records in month order.
func History(records []domain.PRGIRecord, district string) []domain.PRGIRecord {
	district = normalization.NormalizeName(district)
	var out []domain.PRGIRecord
	for _, r := range records {
		if r.District == district {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

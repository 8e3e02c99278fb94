// Package peerlens compares a district against structurally similar peers
// (population and allocation within a tolerance) using median-relative ratios.
package peerlens

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
	"civinigrani/internal/population"
)

var (
	ErrNoData           = errors.New("no peer data available")
	ErrDistrictNotFound = errors.New("district not found")
)

// UserMessage renders an Analyze error for display.
func UserMessage(district string, err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return "No data available"
	case errors.Is(err, ErrDistrictNotFound):
		return fmt.Sprintf("District '%s' not found", district)
	default:
		return err.Error()
	}
}

// Interpretation thresholds on a ratio to the peer median.
const (
	GoodThreshold = 0.90
	BadThreshold  = 1.10
)

// DefaultResolutionRate is used when no receipts were recorded.
const DefaultResolutionRate = 0.5

// Options configures peer selection.
type Options struct {
	Alpha    float64 // population tolerance, fraction of target
	Beta     float64 // allocation tolerance, fraction of target
	MinPeers int
}

// DefaultOptions returns 15% tolerances and a minimum of three peers.
func DefaultOptions() Options {
	return Options{Alpha: 0.15, Beta: 0.15, MinPeers: 3}
}

// profile is one district's latest-month snapshot joined with population
// and the state-wide grievance estimate. NaN marks a missing value.
type profile struct {
	district   string
	prgi       float64
	allocation float64
	population float64
	resolution float64
	receipts   float64
	density    float64
}

// Engine answers peer comparisons over a fixed snapshot.
type Engine struct {
	opts     Options
	profiles []profile
	index    map[string]int
	logger   *zap.Logger
}

// New snapshots the latest month in records. Grievance receipts are summed
// state-wide and spread evenly across districts.
func New(records []domain.PRGIRecord, pop *population.Table, receipts []domain.GrievanceReceipt, opts Options) *Engine {
	e := &Engine{opts: opts, index: make(map[string]int), logger: zap.NewNop()}
	if len(records) == 0 {
		return e
	}

	latest := lo.MaxBy(records, func(a, b domain.PRGIRecord) bool { return a.Month.After(b.Month) }).Month
	current := lo.Filter(records, func(r domain.PRGIRecord, _ int) bool { return r.Month.Equal(latest) })

	resolution := DefaultResolutionRate
	perDistrict := 0.0
	if len(receipts) > 0 {
		total := lo.SumBy(receipts, func(r domain.GrievanceReceipt) float64 { return r.Receipts })
		disposed := lo.SumBy(receipts, func(r domain.GrievanceReceipt) float64 { return r.Disposal })
		if total > 0 {
			resolution = disposed / total
		}
		perDistrict = total / float64(len(current))
	}

	for _, r := range current {
		name := normalization.NormalizeName(r.District)
		p := profile{
			district:   name,
			prgi:       r.PRGI,
			allocation: r.Allocation,
			population: math.NaN(),
			resolution: resolution,
			receipts:   perDistrict,
			density:    math.NaN(),
		}
		if n, ok := pop.Lookup(name); ok {
			p.population = float64(n)
		}
		if p.population > 0 && p.receipts >= 0 {
			p.density = p.receipts / p.population
		}
		if _, dup := e.index[name]; !dup {
			e.index[name] = len(e.profiles)
		}
		e.profiles = append(e.profiles, p)
	}
	return e
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
	return e
}

// Districts returns the snapshot's district names, sorted.
func (e *Engine) Districts() []string {
	names := lo.Uniq(lo.Map(e.profiles, func(p profile, _ int) string { return p.district }))
	sort.Strings(names)
	return names
}

// Analyze compares one district with its peers. Too few peers yields a
// comparison with Valid false and an explanatory Note, not an error.
func (e *Engine) Analyze(district string) (domain.PeerComparison, error) {
	if len(e.profiles) == 0 {
		return domain.PeerComparison{}, ErrNoData
	}
	idx, ok := e.index[normalization.NormalizeName(district)]
	if !ok {
		return domain.PeerComparison{}, fmt.Errorf("%w: %q", ErrDistrictNotFound, district)
	}
	target := e.profiles[idx]
	peers := e.selectPeers(target)

	out := domain.PeerComparison{District: district, PeerCount: len(peers)}
	if len(peers) < e.opts.MinPeers {
		out.Note = fmt.Sprintf("Only %d comparable peers found. Adjust tolerances or reduce minimum peers.", len(peers))
		e.logger.Debug("peer comparison invalid",
			zap.String("district", target.district),
			zap.Int("peers", len(peers)),
			zap.Int("min_peers", e.opts.MinPeers))
		return out, nil
	}

	out.Valid = true
	out.PRGIRelative = relative(target.prgi, lo.Map(peers, func(p profile, _ int) float64 { return p.prgi }))
	out.GrievanceRelative = relative(target.density, lo.Map(peers, func(p profile, _ int) float64 { return p.density }))
	out.ResolutionRelative = relative(target.resolution, lo.Map(peers, func(p profile, _ int) float64 { return p.resolution }))
	out.Peers = lo.Map(peers, func(p profile, _ int) string { return normalization.TitleCase(p.district) })
	out.Interpretation = map[string]string{
		domain.MetricDeliveryGap:        Classify(out.PRGIRelative, true),
		domain.MetricGrievancePressure:  Classify(out.GrievanceRelative, true),
		domain.MetricResolutionCapacity: Classify(out.ResolutionRelative, false),
	}
	return out, nil
}

// AnalyzeAll runs Analyze for every district in sorted order.
func (e *Engine) AnalyzeAll() []domain.PeerComparison {
	names := e.Districts()
	out := make([]domain.PeerComparison, 0, len(names))
	for _, name := range names {
		c, err := e.Analyze(name)
		if err != nil {
			e.logger.Warn("peer analysis failed", zap.String("district", name), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out
}

// selectPeers matches on population and allocation, falling back to
// allocation alone when the target has no usable population.
func (e *Engine) selectPeers(target profile) []profile {
	alloc := target.allocation
	if math.IsNaN(alloc) || alloc <= 0 {
		return nil
	}
	usePopulation := !math.IsNaN(target.population) && target.population > 0

	var peers []profile
	for _, p := range e.profiles {
		if p.district == target.district {
			continue
		}
		if math.Abs(p.allocation-alloc)/alloc > e.opts.Beta {
			continue
		}
		if usePopulation {
			// NaN population fails the comparison and drops the candidate.
			if !(math.Abs(p.population-target.population)/target.population <= e.opts.Alpha) {
				continue
			}
		}
		peers = append(peers, p)
	}
	return peers
}

// relative divides the target by the median of the defined peer values.
func relative(target float64, peerValues []float64) domain.Ratio {
	if math.IsNaN(target) {
		return domain.UndefinedRatio
	}
	defined := lo.Filter(peerValues, func(v float64, _ int) bool { return !math.IsNaN(v) })
	median, err := stats.Median(defined)
	if err != nil || math.IsNaN(median) || median <= 0 {
		return domain.UndefinedRatio
	}
	return domain.DefinedRatio(target / median)
}

// Classify maps a ratio to a verdict. lowerIsBetter holds for the delivery
// gap and grievance pressure; resolution capacity is higher-is-better.
func Classify(r domain.Ratio, lowerIsBetter bool) string {
	if !r.Defined || math.IsNaN(r.Value) {
		return domain.VerdictInsufficient
	}
	if lowerIsBetter {
		switch {
		case r.Value < GoodThreshold:
			return domain.VerdictBetter
		case r.Value > BadThreshold:
			return domain.VerdictWorse
		}
	} else {
		switch {
		case r.Value > BadThreshold:
			return domain.VerdictBetter
		case r.Value < GoodThreshold:
			return domain.VerdictWorse
		}
	}
	return domain.VerdictComparable
}

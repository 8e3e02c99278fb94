// Package validation back-tests grievance spikes against later PRGI movement:
// a spike in month N should precede a wider delivery gap in month N+lag.
package validation

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
)

// DefaultLagMonths is the gap between a spike and the PRGI it predicts.
const DefaultLagMonths = 1

const topCases = 3

// Case is one spike matched to PRGI at the spike month and lagMonths later.
type Case struct {
	District     string
	SpikeMonth   time.Time
	Intensity    float64 // complaints / baseline
	BaselinePRGI float64
	FuturePRGI   float64
	Delta        float64
	Correct      bool // PRGI worsened
}

// Summary aggregates cases.
type Summary struct {
	Total     int
	Correct   int
	Accuracy  float64 // percent
	MeanDelta float64
	Districts int
	Top       []Case // largest Delta first
}

// Correlate pairs each spike with its district's PRGI. Spikes without both
// the spike-month and future-month record are skipped.
func Correlate(flags []domain.SpikeFlag, records []domain.PRGIRecord, lagMonths int) []Case {
	if lagMonths <= 0 {
		lagMonths = DefaultLagMonths
	}

	byKey := lo.SliceToMap(records, func(r domain.PRGIRecord) (string, float64) {
		return key(r.District, r.Month), r.PRGI
	})

	var out []Case
	for _, f := range flags {
		if !f.IsSpike {
			continue
		}
		base, ok := byKey[key(f.District, f.Month)]
		if !ok {
			continue
		}
		future, ok := byKey[key(f.District, f.Month.AddDate(0, lagMonths, 0))]
		if !ok {
			continue
		}
		out = append(out, Case{
			District:     normalization.NormalizeName(f.District),
			SpikeMonth:   f.Month,
			Intensity:    f.Intensity(),
			BaselinePRGI: base,
			FuturePRGI:   future,
			Delta:        future - base,
			Correct:      future-base > 0,
		})
	}
	return out
}

func key(district string, month time.Time) string {
	return normalization.NormalizeName(district) + "|" + domain.FirstOfMonth(month).Format(domain.MonthLayout)
}

// Summarize computes accuracy and picks the three largest deteriorations.
func Summarize(cases []Case) Summary {
	s := Summary{Total: len(cases)}
	if len(cases) == 0 {
		return s
	}

	s.Correct = lo.CountBy(cases, func(c Case) bool { return c.Correct })
	s.Accuracy = float64(s.Correct) / float64(len(cases)) * 100
	s.MeanDelta = lo.SumBy(cases, func(c Case) float64 { return c.Delta }) / float64(len(cases))
	s.Districts = len(lo.UniqBy(cases, func(c Case) string { return c.District }))

	ranked := append([]Case(nil), cases...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Delta > ranked[j].Delta })
	if len(ranked) > topCases {
		ranked = ranked[:topCases]
	}
	s.Top = ranked
	return s
}

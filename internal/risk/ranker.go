// Package risk ranks districts by their recent delivery gap.
package risk

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"civinigrani/internal/domain"
	"civinigrani/internal/prgi"
)

// DefaultWindow is the number of trailing months averaged.
const DefaultWindow = 3

// Ranker produces the high-risk leaderboard.
type Ranker struct {
	window int
}

// NewRanker creates a ranker averaging over the last window months.
func NewRanker(window int) *Ranker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ranker{window: window}
}

// Rank returns the top n districts by mean PRGI over the last window distinct
// months, highest first. Fewer months are used when history is short.
// n <= 0 returns every district. Ties keep ascending district order.
func (r *Ranker) Rank(records []domain.PRGIRecord, n int) []domain.RiskEntry {
	if len(records) == 0 {
		return nil
	}

	months := prgi.Months(records)
	if len(months) > r.window {
		months = months[len(months)-r.window:]
	}
	inWindow := make(map[time.Time]struct{}, len(months))
	for _, m := range months {
		inWindow[m] = struct{}{}
	}
	latestMonth := months[len(months)-1]

	recent := lo.Filter(records, func(rec domain.PRGIRecord, _ int) bool {
		_, ok := inWindow[rec.Month]
		return ok
	})
	byDistrict := lo.GroupBy(recent, func(rec domain.PRGIRecord) string { return rec.District })

	districts := lo.Keys(byDistrict)
	sort.Strings(districts)

	entries := make([]domain.RiskEntry, 0, len(districts))
	for _, d := range districts {
		rows := byDistrict[d]
		entry := domain.RiskEntry{
			District: d,
			AvgPRGI:  lo.SumBy(rows, func(rec domain.PRGIRecord) float64 { return rec.PRGI }) / float64(len(rows)),
			Months:   len(rows),
		}
		if latest, ok := lo.Find(rows, func(rec domain.PRGIRecord) bool { return rec.Month.Equal(latestMonth) }); ok {
			v := latest.PRGI
			entry.LatestPRGI = &v
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AvgPRGI > entries[j].AvgPRGI
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

package reporting

import (
	"context"
	"sort"
	"time"

	"civinigrani/internal/anomaly"
	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
	"civinigrani/internal/prgi"
	"civinigrani/internal/risk"
	"civinigrani/internal/spike"
	"civinigrani/internal/storage"
)

// DefaultTopN is the leaderboard length.
const DefaultTopN = 10

// Generator produces reports from stored data.
type Generator struct {
	prgiStore      storage.PRGIStore
	grievanceStore storage.GrievanceStore
	anomalyStore   storage.AnomalyStore
	runStore       storage.RunStore

	ranker     *risk.Ranker
	topN       int
	spikes     *spike.Detector
	thresholds prgi.Thresholds
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator over one set of stores.
func NewGenerator(stores storage.Stores) *Generator {
	return &Generator{
		prgiStore:      stores.PRGI,
		grievanceStore: stores.Grievance,
		anomalyStore:   stores.Anomaly,
		runStore:       stores.Run,
		ranker:         risk.NewRanker(risk.DefaultWindow),
		topN:           DefaultTopN,
		spikes:         spike.NewDetector(spike.DefaultSensitivity),
		thresholds:     prgi.DefaultThresholds,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds sets the severity bands used for leaderboard narratives.
func (g *Generator) WithThresholds(th prgi.Thresholds) *Generator {
	g.thresholds = th
	return g
}

// WithRanker sets the leaderboard ranker and length.
func (g *Generator) WithRanker(r *risk.Ranker, topN int) *Generator {
	g.ranker = r
	g.topN = topN
	return g
}

// WithSpikeDetector sets the detector used for spikes and trend alerts.
func (g *Generator) WithSpikeDetector(d *spike.Detector) *Generator {
	g.spikes = d
	return g
}

// Generate produces the report for a stored run from the stored tables.
// PeerComparisons and DataQuality are left for the caller, which holds the
// inputs they need.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	records, err := g.prgiStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	signals, err := g.grievanceStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	flags, err := g.anomalyStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	return g.Build(*run, records, signals, flags), nil
}

// Build produces a report from one run's in-memory tables.
func (g *Generator) Build(run domain.RunRecord, records []domain.PRGIRecord, signals []domain.GrievanceSignal, flags []domain.AnomalyFlag) *Report {
	return &Report{
		GeneratedAt:    g.now(),
		Run:            run,
		DataSummary:    summarizeData(records, signals),
		Leaderboard:    g.leaderboard(records),
		Spikes:         spikesByMonth(spike.Spikes(g.spikes.Detect(signals))),
		TrendAlerts:    g.spikes.TrendAlerts(records),
		Anomalies:      anomaly.Summarize(flags),
		FlaggedRecords: flagged(flags),
	}
}

// summarizeData computes record, district and month counts.
func summarizeData(records []domain.PRGIRecord, signals []domain.GrievanceSignal) DataSummary {
	s := DataSummary{Records: len(records), Signals: len(signals)}

	districts := make(map[string]struct{})
	for _, r := range records {
		districts[r.District] = struct{}{}
	}
	s.Districts = len(districts)

	months := prgi.Months(records)
	s.Months = len(months)
	if len(months) > 0 {
		s.FirstMonth = months[0]
		s.LastMonth = months[len(months)-1]
	}
	return s
}

// leaderboard ranks districts and attaches severity bands.
func (g *Generator) leaderboard(records []domain.PRGIRecord) []LeaderboardRow {
	entries := g.ranker.Rank(records, g.topN)
	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, LeaderboardRow{
			Rank:       i + 1,
			District:   normalization.TitleCase(e.District),
			AvgPRGI:    e.AvgPRGI,
			LatestPRGI: e.LatestPRGI,
			Months:     e.Months,
			Severity:   g.thresholds.Classify(e.AvgPRGI),
			Narrative:  g.thresholds.Narrative(domain.PRGIRecord{District: e.District, PRGI: e.AvgPRGI}),
		})
	}
	return rows
}

// spikesByMonth reorders spikes chronologically, district breaking ties.
func spikesByMonth(flags []domain.SpikeFlag) []domain.SpikeFlag {
	out := append([]domain.SpikeFlag(nil), flags...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].District < out[j].District
	})
	return out
}

// flagged keeps flags raised by either pass, most anomalous first.
func flagged(flags []domain.AnomalyFlag) []domain.AnomalyFlag {
	var out []domain.AnomalyFlag
	for _, f := range flags {
		if f.IsAnomaly || f.IsSimpleAnomaly {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AnomalyScore != out[j].AnomalyScore {
			return out[i].AnomalyScore < out[j].AnomalyScore
		}
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].District < out[j].District
	})
	return out
}

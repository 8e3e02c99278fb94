package reporting

import (
	"time"

	"civinigrani/internal/anomaly"
	"civinigrani/internal/domain"
	"civinigrani/internal/prgi"
)

// GeneratorVersion is stamped into every report for reproducibility.
const GeneratorVersion = "civinigrani/1.0"

// Report is the PRGI_REPORT.md structure for one pipeline run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Run         domain.RunRecord

	DataSummary DataSummary
	DataQuality DataQualitySection

	// Leaderboard rows, highest average PRGI first
	Leaderboard []LeaderboardRow

	// Grievance early warning: spikes only, ordered by month then district
	Spikes      []domain.SpikeFlag
	TrendAlerts []domain.TrendAlert

	Anomalies       anomaly.Summary
	FlaggedRecords  []domain.AnomalyFlag // statistical or rule-based, ordered by score ASC
	PeerComparisons []domain.PeerComparison
}

// DataSummary describes the PRGI table the run produced.
type DataSummary struct {
	Records     int
	Districts   int
	Months      int
	FirstMonth  time.Time
	LastMonth   time.Time
	RowsIn      int
	RowsDropped int
	Signals     int // grievance observations
}

// DataQualitySection contains sufficiency checks and integrity errors.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	IntegrityErrors   []string
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// LeaderboardRow is one risk entry with its severity band and narrative.
type LeaderboardRow struct {
	Rank       int
	District   string // title-cased
	AvgPRGI    float64
	LatestPRGI *float64
	Months     int
	Severity   prgi.Severity
	Narrative  string
}

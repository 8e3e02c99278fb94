package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"civinigrani/internal/domain"
)

// renderCSV writes header and rows with RFC 4180 quoting. Free-text
// columns such as anomaly reasons may contain commas.
func renderCSV(header []string, rows [][]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(header)
	_ = w.WriteAll(rows) // strings.Builder writes never fail
	return sb.String()
}

func f6(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// RenderPRGICSV renders prgi_records.csv ordered as given.
func RenderPRGICSV(records []domain.PRGIRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.District,
			r.Month.Format(domain.MonthLayout),
			f6(r.Allocation),
			f6(r.Distribution),
			f6(r.PRGI),
		})
	}
	return renderCSV([]string{"district", "month", "allocation", "distribution", "prgi"}, rows)
}

// RenderRiskCSV renders risk_leaderboard.csv.
func RenderRiskCSV(rows []LeaderboardRow) string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		latest := ""
		if r.LatestPRGI != nil {
			latest = f6(*r.LatestPRGI)
		}
		out = append(out, []string{
			strconv.Itoa(r.Rank),
			r.District,
			f6(r.AvgPRGI),
			latest,
			strconv.Itoa(r.Months),
			string(r.Severity),
		})
	}
	return renderCSV([]string{"rank", "district", "avg_prgi", "latest_prgi", "months", "severity"}, out)
}

// RenderSpikesCSV renders grievance_spikes.csv. All flags are written, not
// only spikes, so the baseline can be audited.
func RenderSpikesCSV(flags []domain.SpikeFlag) string {
	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, []string{
			f.Month.Format(domain.MonthLayout),
			f.District,
			f.Source,
			strconv.FormatInt(f.Signals, 10),
			f6(f.Baseline),
			f6(f.Threshold),
			strconv.FormatBool(f.IsSpike),
		})
	}
	return renderCSV([]string{"month", "district", "source", "signals", "baseline", "threshold", "is_spike"}, rows)
}

// RenderAnomaliesCSV renders anomalies.csv.
func RenderAnomaliesCSV(flags []domain.AnomalyFlag) string {
	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, []string{
			f.District,
			f.Month.Format(domain.MonthLayout),
			f6(f.Allocation),
			f6(f.Distribution),
			f6(f.PRGI),
			strconv.FormatBool(f.IsAnomaly),
			f6(f.AnomalyScore),
			f.AnomalyReason,
			strconv.FormatBool(f.IsSimpleAnomaly),
			f.SimpleAnomaly,
		})
	}
	return renderCSV([]string{
		"district", "month", "allocation", "distribution", "prgi",
		"is_anomaly", "anomaly_score", "anomaly_reason",
		"is_simple_anomaly", "simple_anomaly",
	}, rows)
}

// RenderPeersCSV renders peer_comparisons.csv. Undefined ratios are empty cells.
func RenderPeersCSV(comparisons []domain.PeerComparison) string {
	ratio := func(r domain.Ratio) string {
		if !r.Defined {
			return ""
		}
		return f6(r.Value)
	}
	rows := make([][]string, 0, len(comparisons))
	for _, c := range comparisons {
		rows = append(rows, []string{
			c.District,
			strconv.Itoa(c.PeerCount),
			strconv.FormatBool(c.Valid),
			ratio(c.PRGIRelative),
			ratio(c.GrievanceRelative),
			ratio(c.ResolutionRelative),
			c.Interpretation[domain.MetricDeliveryGap],
			c.Interpretation[domain.MetricGrievancePressure],
			c.Interpretation[domain.MetricResolutionCapacity],
			strings.Join(c.Peers, "; "),
			c.Note,
		})
	}
	return renderCSV([]string{
		"district", "peer_count", "valid",
		"prgi_relative", "grievance_relative", "resolution_relative",
		"delivery_gap", "grievance_pressure", "resolution_capacity",
		"peers", "note",
	}, rows)
}

// CSVFiles maps output filenames to their rendered contents.
func CSVFiles(r *Report, records []domain.PRGIRecord, spikeFlags []domain.SpikeFlag, anomalies []domain.AnomalyFlag) map[string]string {
	return map[string]string{
		"prgi_records.csv":     RenderPRGICSV(records),
		"risk_leaderboard.csv": RenderRiskCSV(r.Leaderboard),
		"grievance_spikes.csv": RenderSpikesCSV(spikeFlags),
		"anomalies.csv":        RenderAnomaliesCSV(anomalies),
		"peer_comparisons.csv": RenderPeersCSV(r.PeerComparisons),
	}
}

// ReportFilename is the markdown report's filename.
const ReportFilename = "PRGI_REPORT.md"

// CaseStudyFilename is the validation report's filename.
const CaseStudyFilename = "PGSM_CASE_STUDY.md"

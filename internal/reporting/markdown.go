package reporting

import (
	"fmt"
	"strings"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/normalization"
	"civinigrani/internal/validation"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# PRGI Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString("| Run | Data Version | State | Status | Generator |\n")
	sb.WriteString("|-----|--------------|-------|--------|-----------|\n")
	sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n\n",
		r.Run.RunID, r.Run.DataVersion, r.Run.TargetState, r.Run.Status, GeneratorVersion))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| PRGI Records | %d |\n", r.DataSummary.Records))
	sb.WriteString(fmt.Sprintf("| Districts | %d |\n", r.DataSummary.Districts))
	sb.WriteString(fmt.Sprintf("| Months | %d |\n", r.DataSummary.Months))
	sb.WriteString(fmt.Sprintf("| First Month | %s |\n", formatMonth(r.DataSummary.FirstMonth)))
	sb.WriteString(fmt.Sprintf("| Last Month | %s |\n", formatMonth(r.DataSummary.LastMonth)))
	sb.WriteString(fmt.Sprintf("| Rows Read | %d |\n", r.DataSummary.RowsIn))
	sb.WriteString(fmt.Sprintf("| Rows Dropped | %d |\n", r.DataSummary.RowsDropped))
	sb.WriteString(fmt.Sprintf("| Grievance Observations | %d |\n", r.DataSummary.Signals))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.SufficiencyChecks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.SufficiencyChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Sections depending on them may be empty.\n\n")
		}
	} else if len(r.DataQuality.IntegrityErrors) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}

	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	// Leaderboard
	sb.WriteString("## High-Risk Districts\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Rank | District | Avg PRGI | Latest PRGI | Months | Severity |\n")
		sb.WriteString("|------|----------|----------|-------------|--------|----------|\n")
		for _, row := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.4f | %s | %d | %s |\n",
				row.Rank, row.District, row.AvgPRGI, formatOptional(row.LatestPRGI), row.Months, row.Severity))
		}
		sb.WriteString("\n")
		for _, row := range r.Leaderboard {
			sb.WriteString(fmt.Sprintf("- %s\n", row.Narrative))
		}
	} else {
		sb.WriteString("No districts to rank.\n")
	}
	sb.WriteString("\n")

	// Early warning
	sb.WriteString("## Grievance Spikes\n\n")
	if len(r.Spikes) > 0 {
		sb.WriteString("| Month | District | Signals | Baseline | Threshold | Intensity |\n")
		sb.WriteString("|-------|----------|---------|----------|-----------|-----------|\n")
		for _, s := range r.Spikes {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.2f | %.2f | %.2f |\n",
				formatMonth(s.Month), displayDistrict(s.District), s.Signals, s.Baseline, s.Threshold, s.Intensity()))
		}
	} else {
		sb.WriteString("No grievance spikes detected.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## PRGI Trend Alerts\n\n")
	if len(r.TrendAlerts) > 0 {
		sb.WriteString("| District | Month | Latest | Recent Mean | Threshold |\n")
		sb.WriteString("|----------|-------|--------|-------------|-----------|\n")
		for _, a := range r.TrendAlerts {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f | %.4f |\n",
				normalization.TitleCase(a.District), formatMonth(a.Month), a.Latest, a.RecentMean, a.Threshold))
		}
	} else {
		sb.WriteString("No trend alerts raised.\n")
	}
	sb.WriteString("\n")

	// Anomalies
	sb.WriteString("## Anomalies\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Records Scored | %d |\n", r.Anomalies.TotalRecords))
	sb.WriteString(fmt.Sprintf("| Statistical Anomalies | %d |\n", r.Anomalies.TotalAnomalies))
	sb.WriteString(fmt.Sprintf("| Anomaly Rate | %.2f%% |\n", r.Anomalies.AnomalyRate))
	sb.WriteString(fmt.Sprintf("| Avg Anomaly Score | %.4f |\n", r.Anomalies.AvgAnomalyScore))
	sb.WriteString("\n")
	if len(r.FlaggedRecords) > 0 {
		sb.WriteString("| District | Month | PRGI | Score | Reason | Rules |\n")
		sb.WriteString("|----------|-------|------|-------|--------|-------|\n")
		for _, f := range r.FlaggedRecords {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f | %s | %s |\n",
				normalization.TitleCase(f.District), formatMonth(f.Month), f.PRGI, f.AnomalyScore,
				orDash(f.AnomalyReason), orDash(f.SimpleAnomaly)))
		}
	} else {
		sb.WriteString("No records flagged.\n")
	}
	sb.WriteString("\n")

	// Peers
	sb.WriteString("## Peer Comparisons\n\n")
	if len(r.PeerComparisons) > 0 {
		sb.WriteString("| District | Peers | Delivery Gap | Grievance Pressure | Resolution Capacity | Verdict |\n")
		sb.WriteString("|----------|-------|--------------|--------------------|---------------------|---------|\n")
		for _, c := range r.PeerComparisons {
			verdict := c.Interpretation[domain.MetricDeliveryGap]
			if !c.Valid {
				verdict = c.Note
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
				normalization.TitleCase(c.District), c.PeerCount,
				c.PRGIRelative, c.GrievanceRelative, c.ResolutionRelative, verdict))
		}
	} else {
		sb.WriteString("No peer comparisons available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderCaseStudy renders the PGSM forward-validation report.
func RenderCaseStudy(s validation.Summary, lagMonths int, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# PGSM Case Study\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Question: does a grievance spike precede a worse PRGI %d month(s) later?\n\n", lagMonths))

	sb.WriteString("## Summary\n\n")
	if s.Total == 0 {
		sb.WriteString("No spikes had PRGI data for both the spike month and the follow-up month.\n")
		return sb.String()
	}
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Spikes Evaluated | %d |\n", s.Total))
	sb.WriteString(fmt.Sprintf("| Followed By Worse PRGI | %d |\n", s.Correct))
	sb.WriteString(fmt.Sprintf("| Accuracy | %.1f%% |\n", s.Accuracy))
	sb.WriteString(fmt.Sprintf("| Mean PRGI Delta | %+.4f |\n", s.MeanDelta))
	sb.WriteString(fmt.Sprintf("| Districts | %d |\n", s.Districts))
	sb.WriteString("\n")

	sb.WriteString("## Largest Deteriorations\n\n")
	sb.WriteString("| District | Spike Month | Intensity | Baseline PRGI | Future PRGI | Delta |\n")
	sb.WriteString("|----------|-------------|-----------|---------------|-------------|-------|\n")
	for _, c := range s.Top {
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2fx | %.4f | %.4f | %+.4f |\n",
			normalization.TitleCase(c.District), formatMonth(c.SpikeMonth),
			c.Intensity, c.BaselinePRGI, c.FuturePRGI, c.Delta))
	}
	sb.WriteString("\n")
	return sb.String()
}

// RenderPeerMessage is the plain-text form of one comparison, as shown to MCP
// and terminal users.
func RenderPeerMessage(c domain.PeerComparison) string {
	name := normalization.TitleCase(c.District)
	if !c.Valid {
		return fmt.Sprintf("%s: %s\n", name, c.Note)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s vs %d peers (%s)\n", name, c.PeerCount, strings.Join(c.Peers, ", ")))
	sb.WriteString(fmt.Sprintf("  delivery gap:        %s  %s\n", c.PRGIRelative, c.Interpretation[domain.MetricDeliveryGap]))
	sb.WriteString(fmt.Sprintf("  grievance pressure:  %s  %s\n", c.GrievanceRelative, c.Interpretation[domain.MetricGrievancePressure]))
	sb.WriteString(fmt.Sprintf("  resolution capacity: %s  %s\n", c.ResolutionRelative, c.Interpretation[domain.MetricResolutionCapacity]))
	return sb.String()
}

func formatMonth(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(domain.MonthLayout)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func displayDistrict(d string) string {
	if d == "" {
		return "State"
	}
	return normalization.TitleCase(d)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

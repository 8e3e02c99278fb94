// Package datatools answers read-only questions over computed PRGI and
// grievance tables. Every answer carries a citation describing its data.
package datatools

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"

	"civinigrani/internal/domain"
	"civinigrani/internal/grievance"
	"civinigrani/internal/normalization"
	"civinigrani/internal/prgi"
)

const (
	sourcePDS       = "PDS Distribution Data"
	sourceGrievance = "PGSM Grievance Data"
	dateLayout      = "2006-01-02"

	// DefaultSpikeThresholdPct is the month-over-month increase flagged by GrievanceSpikes.
	DefaultSpikeThresholdPct = 30.0
	// DefaultTopN is the TopPRGIDistricts default size.
	DefaultTopN = 5

	trendEpsilon = 0.01
)

// Citation describes the data behind an answer.
type Citation struct {
	Source            string `json:"source"`
	Period            string `json:"period,omitempty"`
	Year              string `json:"year,omitempty"`
	District          string `json:"district,omitempty"`
	Metric            string `json:"metric,omitempty"`
	Threshold         string `json:"threshold,omitempty"`
	DistrictsAnalyzed int    `json:"districts_analyzed,omitempty"`
	MonthsAnalyzed    int    `json:"months_analyzed,omitempty"`
	DataPoints        int    `json:"data_points,omitempty"`
}

// Response is a tool answer: a payload and citation, or an error message.
type Response[T any] struct {
	Results  T         `json:"results,omitempty"`
	Citation *Citation `json:"citation"`
	Error    string    `json:"error,omitempty"`
}

func failure[T any](format string, args ...any) Response[T] {
	return Response[T]{Error: fmt.Sprintf(format, args...)}
}

// DistrictPRGI is one row of TopPRGIDistricts.
type DistrictPRGI struct {
	District     string  `json:"district"`
	PRGI         float64 `json:"prgi"`
	Allocation   float64 `json:"allocation"`
	Distribution float64 `json:"distribution"`
}

// ReceiptSpike is one month flagged by GrievanceSpikes.
type ReceiptSpike struct {
	Month       string  `json:"month"`
	Receipts    int64   `json:"receipts"`
	IncreasePct float64 `json:"increase_pct"`
}

// MonthPRGI is one point of a district's recent history.
type MonthPRGI struct {
	Month string  `json:"month"`
	PRGI  float64 `json:"prgi"`
}

// Explanation is the ExplainPRGIChange payload.
type Explanation struct {
	District     string      `json:"district"`
	Month        string      `json:"month"`
	CurrentPRGI  float64     `json:"current_prgi"`
	Trend        string      `json:"trend"`
	Change       float64     `json:"change"`
	Narrative    string      `json:"narrative"`
	RecentMonths []MonthPRGI `json:"recent_months"`
}

// RiskClassification counts records per severity band.
type RiskClassification struct {
	HighRisk   int `json:"high_risk"`
	MediumRisk int `json:"medium_risk"`
	LowRisk    int `json:"low_risk"`
}

// StateSummary is the StateSummary payload.
type StateSummary struct {
	TotalDistricts     int                `json:"total_districts"`
	Months             int                `json:"months"`
	AvgPRGI            float64            `json:"avg_prgi"`
	MedianPRGI         float64            `json:"median_prgi"`
	WorstPRGI          float64            `json:"worst_prgi"`
	BestPRGI           float64            `json:"best_prgi"`
	TotalAllocation    float64            `json:"total_allocation"`
	TotalDistribution  float64            `json:"total_distribution"`
	RiskClassification RiskClassification `json:"risk_classification"`
}

// Tools holds immutable snapshots of the computed tables.
type Tools struct {
	records    []domain.PRGIRecord
	receipts   []domain.GrievanceReceipt
	thresholds prgi.Thresholds
}

// New copies the inputs so later mutation by the caller cannot leak in.
func New(records []domain.PRGIRecord, receipts []domain.GrievanceReceipt) *Tools {
	r := append([]domain.PRGIRecord(nil), records...)
	prgi.SortRecords(r)
	return &Tools{
		records:    r,
		receipts:   append([]domain.GrievanceReceipt(nil), receipts...),
		thresholds: prgi.DefaultThresholds,
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// matchesPeriod reports whether the record's date string contains period.
func matchesPeriod(r domain.PRGIRecord, period string) bool {
	return period == "" || strings.Contains(r.Month.Format(dateLayout), period)
}

// TopPRGIDistricts returns the n districts with the widest latest gap,
// optionally restricted to months whose date contains period ("2024-10").
func (t *Tools) TopPRGIDistricts(n int, period string) Response[[]DistrictPRGI] {
	if len(t.records) == 0 {
		return failure[[]DistrictPRGI]("No PRGI data available")
	}
	if n <= 0 {
		n = DefaultTopN
	}

	filtered := lo.Filter(t.records, func(r domain.PRGIRecord, _ int) bool { return matchesPeriod(r, period) })
	latest := prgi.LatestPerDistrict(filtered)
	sort.SliceStable(latest, func(i, j int) bool { return latest[i].PRGI > latest[j].PRGI })
	if len(latest) > n {
		latest = latest[:n]
	}

	results := lo.Map(latest, func(r domain.PRGIRecord, _ int) DistrictPRGI {
		return DistrictPRGI{
			District:     normalization.TitleCase(r.District),
			PRGI:         round3(r.PRGI),
			Allocation:   r.Allocation,
			Distribution: r.Distribution,
		}
	})

	label := period
	if label == "" {
		label = "Latest available"
	}
	return Response[[]DistrictPRGI]{
		Results: results,
		Citation: &Citation{
			Source:            sourcePDS,
			Period:            label,
			DistrictsAnalyzed: len(lo.UniqBy(filtered, func(r domain.PRGIRecord) string { return r.District })),
			DataPoints:        len(filtered),
		},
	}
}

// GrievanceSpikes flags months whose total receipts rose by more than thresholdPct.
func (t *Tools) GrievanceSpikes(thresholdPct float64) Response[[]ReceiptSpike] {
	if len(t.receipts) == 0 {
		return failure[[]ReceiptSpike]("No grievance data available")
	}
	monthly := grievance.MonthlyReceipts(t.receipts)
	if len(monthly) == 0 {
		return failure[[]ReceiptSpike]("Insufficient grievance data")
	}

	results := []ReceiptSpike{}
	for i := 1; i < len(monthly); i++ {
		prev := monthly[i-1].Receipts
		if prev <= 0 {
			continue
		}
		pct := (monthly[i].Receipts - prev) / prev * 100
		if pct > thresholdPct {
			results = append(results, ReceiptSpike{
				Month:       monthly[i].Month.Format(dateLayout),
				Receipts:    int64(monthly[i].Receipts),
				IncreasePct: math.Round(pct*10) / 10,
			})
		}
	}

	return Response[[]ReceiptSpike]{
		Results: results,
		Citation: &Citation{
			Source:         sourceGrievance,
			MonthsAnalyzed: len(monthly),
			Threshold:      fmt.Sprintf("%g%% increase", thresholdPct),
		},
	}
}

// ExplainPRGIChange compares a district's month (latest when empty) with the
// month before it.
func (t *Tools) ExplainPRGIChange(district, month string) Response[*Explanation] {
	history := prgi.History(t.records, district)
	if len(history) == 0 {
		return failure[*Explanation]("No data found for district: %s", district)
	}

	idx := len(history) - 1
	if month != "" {
		idx = lo.IndexOf(lo.Map(history, func(r domain.PRGIRecord, _ int) bool { return matchesPeriod(r, month) }), true)
		if idx < 0 {
			return failure[*Explanation]("No data for %s in %s", month, district)
		}
	}
	current := history[idx]

	trend, change := "stable", 0.0
	if idx > 0 {
		change = current.PRGI - history[idx-1].PRGI
		switch {
		case change > trendEpsilon:
			trend = "increasing (worsening)"
		case change < -trendEpsilon:
			trend = "decreasing (improving)"
		}
	}

	from := max(0, idx-2)
	recent := lo.Map(history[from:idx+1], func(r domain.PRGIRecord, _ int) MonthPRGI {
		return MonthPRGI{Month: r.Month.Format(domain.MonthLayout), PRGI: round3(r.PRGI)}
	})

	name := normalization.TitleCase(normalization.NormalizeName(district))
	return Response[*Explanation]{
		Results: &Explanation{
			District:     name,
			Month:        current.Month.Format(domain.MonthLayout),
			CurrentPRGI:  round3(current.PRGI),
			Trend:        trend,
			Change:       round3(change),
			Narrative:    t.thresholds.Narrative(current),
			RecentMonths: recent,
		},
		Citation: &Citation{
			Source:   sourcePDS,
			District: name,
			Period:   current.Month.Format(dateLayout),
			Metric:   "PRGI (Policy Reality Gap Index)",
		},
	}
}

// StateSummary aggregates every record, optionally restricted to a year ("2024").
func (t *Tools) StateSummary(year string) Response[*StateSummary] {
	if len(t.records) == 0 {
		return failure[*StateSummary]("No PRGI data available")
	}
	filtered := lo.Filter(t.records, func(r domain.PRGIRecord, _ int) bool { return matchesPeriod(r, year) })
	if len(filtered) == 0 {
		return failure[*StateSummary]("No data for year %s", year)
	}

	values := stats.Float64Data(lo.Map(filtered, func(r domain.PRGIRecord, _ int) float64 { return r.PRGI }))
	mean, _ := values.Mean()
	median, _ := values.Median()
	worst, _ := values.Max()
	best, _ := values.Min()

	var risk RiskClassification
	for _, r := range filtered {
		switch t.thresholds.Classify(r.PRGI) {
		case prgi.SeverityCritical:
			risk.HighRisk++
		case prgi.SeverityHigh:
			risk.MediumRisk++
		default:
			risk.LowRisk++
		}
	}

	label := year
	if label == "" {
		label = "All available"
	}
	return Response[*StateSummary]{
		Results: &StateSummary{
			TotalDistricts:     len(lo.UniqBy(filtered, func(r domain.PRGIRecord) string { return r.District })),
			Months:             len(prgi.Months(filtered)),
			AvgPRGI:            round3(mean),
			MedianPRGI:         round3(median),
			WorstPRGI:          round3(worst),
			BestPRGI:           round3(best),
			TotalAllocation:    lo.SumBy(filtered, func(r domain.PRGIRecord) float64 { return r.Allocation }),
			TotalDistribution:  lo.SumBy(filtered, func(r domain.PRGIRecord) float64 { return r.Distribution }),
			RiskClassification: risk,
		},
		Citation: &Citation{Source: sourcePDS, Year: label, DataPoints: len(filtered)},
	}
}

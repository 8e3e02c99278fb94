package anomaly

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"civinigrani/internal/domain"
)

// Feature columns, in matrix order.
const (
	featAllocation = iota
	featDistribution
	featPRGI
	featMonth
	featLag1
	featLag2
	featRollingMean
	featRollingStd
	numFeatures
)

// FeatureNames lists the engineered features in matrix column order.
var FeatureNames = [numFeatures]string{
	"allocation",
	"distribution",
	"prgi",
	"month_numeric",
	"prgi_lag1",
	"prgi_lag2",
	"prgi_rolling_mean",
	"prgi_rolling_std",
}

const rollingWindow = 3

// engineer builds the raw feature matrix aligned with records. Temporal
// features are computed per district in month order; values that do not
// exist yet (first lags, single-point std) are zero.
func engineer(records []domain.PRGIRecord) [][]float64 {
	x := make([][]float64, len(records))
	for i, r := range records {
		row := make([]float64, numFeatures)
		row[featAllocation] = r.Allocation
		row[featDistribution] = r.Distribution
		row[featPRGI] = r.PRGI
		row[featMonth] = float64(domain.MonthIndex(r.Month))
		x[i] = row
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := records[order[a]], records[order[b]]
		if ra.District != rb.District {
			return ra.District < rb.District
		}
		return ra.Month.Before(rb.Month)
	})

	start := 0
	for pos, idx := range order {
		if pos > 0 && records[order[pos-1]].District != records[idx].District {
			start = pos
		}
		row := x[idx]
		if pos-1 >= start {
			row[featLag1] = records[order[pos-1]].PRGI
		}
		if pos-2 >= start {
			row[featLag2] = records[order[pos-2]].PRGI
		}

		lo := pos - rollingWindow + 1
		if lo < start {
			lo = start
		}
		window := make([]float64, 0, rollingWindow)
		for _, j := range order[lo : pos+1] {
			window = append(window, records[j].PRGI)
		}
		row[featRollingMean] = stat.Mean(window, nil)
		if len(window) > 1 {
			row[featRollingStd] = stat.StdDev(window, nil)
		}
		for k, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[k] = 0
			}
		}
	}
	return x
}

package anomaly

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// scaler standardizes columns with the training set's mean and population std.
type scaler struct {
	mean  []float64
	scale []float64
}

func fitScaler(x [][]float64) *scaler {
	if len(x) == 0 {
		return &scaler{}
	}
	cols := len(x[0])
	s := &scaler{mean: make([]float64, cols), scale: make([]float64, cols)}
	col := make([]float64, len(x))
	for c := 0; c < cols; c++ {
		for r := range x {
			col[r] = x[r][c]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.mean[c] = mean
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.scale[c] = std
	}
	return s
}

// transform returns a standardized copy of x.
func (s *scaler) transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for r, row := range x {
		z := make([]float64, len(row))
		for c, v := range row {
			z[c] = (v - s.mean[c]) / s.scale[c]
		}
		out[r] = z
	}
	return out
}

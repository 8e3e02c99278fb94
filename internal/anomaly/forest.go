package anomaly

import (
	"math"
	"math/rand/v2"
	"sort"
)

const (
	defaultMaxSamples = 256
	eulerGamma        = 0.5772156649015329
)

type node struct {
	feature     int
	split       float64
	left, right *node
	size        int // samples reaching a leaf
}

func (n *node) leaf() bool { return n.left == nil }

// forest is an isolation forest over standardized rows.
type forest struct {
	trees      []*node
	sampleSize int
}

func growForest(x [][]float64, trees, maxSamples int, rng *rand.Rand) *forest {
	psi := min(maxSamples, len(x))
	depthLimit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	f := &forest{trees: make([]*node, trees), sampleSize: psi}
	for t := range f.trees {
		perm := rng.Perm(len(x))[:psi]
		sample := make([][]float64, psi)
		for i, idx := range perm {
			sample[i] = x[idx]
		}
		f.trees[t] = grow(sample, 0, depthLimit, rng)
	}
	return f
}

func grow(rows [][]float64, depth, limit int, rng *rand.Rand) *node {
	if depth >= limit || len(rows) <= 1 {
		return &node{size: len(rows)}
	}

	// Try features in random order until one is not constant on this node.
	cols := len(rows[0])
	for _, feat := range rng.Perm(cols) {
		lo, hi := rows[0][feat], rows[0][feat]
		for _, r := range rows[1:] {
			lo = math.Min(lo, r[feat])
			hi = math.Max(hi, r[feat])
		}
		if hi <= lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, r := range rows {
			if r[feat] < split {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		return &node{
			feature: feat,
			split:   split,
			left:    grow(left, depth+1, limit, rng),
			right:   grow(right, depth+1, limit, rng),
		}
	}
	return &node{size: len(rows)}
}

func pathLength(n *node, row []float64) float64 {
	depth := 0.0
	for !n.leaf() {
		if row[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return depth + averagePathLength(n.size)
}

// averagePathLength is c(n), the mean unsuccessful-search depth of a BST with n keys.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// score returns -2^(-E[h(x)]/c(psi)). Lower is more anomalous, range [-1, 0).
func (f *forest) score(row []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, row)
	}
	mean := total / float64(len(f.trees))
	c := averagePathLength(f.sampleSize)
	if c == 0 {
		return -1
	}
	return -math.Pow(2, -mean/c)
}

// percentile uses linear interpolation between closest ranks, p in [0, 100].
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

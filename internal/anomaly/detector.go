// Package anomaly flags suspicious district-month PRGI records with a
// rule pass and an isolation-forest outlier model over temporal features.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"civinigrani/internal/domain"
)

var (
	// ErrNotFitted is returned when scoring without a fitted model.
	ErrNotFitted = errors.New("anomaly model not fitted")
	// ErrTooFewRecords is returned when the training set cannot grow a forest.
	ErrTooFewRecords = errors.New("need at least 2 records to fit")
)

const (
	DefaultContamination = 0.05
	DefaultTrees         = 100
	DefaultSeed          = 42
)

// Detector holds isolation-forest hyperparameters. It carries no fitted state.
type Detector struct {
	Contamination float64
	Trees         int
	Seed          uint64
	MaxSamples    int

	// HighAllocation is the rule-pass allocation ceiling; <= 0 selects
	// HighAllocationThreshold.
	HighAllocation float64

	logger *zap.Logger
}

// NewDetector returns a detector with the default hyperparameters.
func NewDetector() *Detector {
	return &Detector{
		Contamination:  DefaultContamination,
		Trees:          DefaultTrees,
		Seed:           DefaultSeed,
		MaxSamples:     defaultMaxSamples,
		HighAllocation: HighAllocationThreshold,
		logger:         zap.NewNop(),
	}
}

// WithLogger sets the logger.
func (d *Detector) WithLogger(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	d.logger = logger
	return d
}

// Model is a fitted scaler, forest and decision threshold. It is immutable
// after Fit and belongs to the caller that produced it; runs with different
// training sets must fit their own.
type Model struct {
	scaler    *scaler
	forest    *forest
	threshold float64
	trainedOn int
	highAlloc float64
}

// Threshold is the training-score quantile at the configured contamination.
func (m *Model) Threshold() float64 { return m.threshold }

// TrainedOn is the number of training records.
func (m *Model) TrainedOn() int { return m.trainedOn }

// Fit standardizes the engineered features and grows the forest.
// Fitting the same records with the same seed yields the same model.
func (d *Detector) Fit(records []domain.PRGIRecord) (*Model, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("fit on %d records: %w", len(records), ErrTooFewRecords)
	}
	if d.Contamination <= 0 || d.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination %.3f out of range (0, 0.5]", d.Contamination)
	}
	trees := d.Trees
	if trees <= 0 {
		trees = DefaultTrees
	}
	maxSamples := d.MaxSamples
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}

	raw := engineer(records)
	sc := fitScaler(raw)
	x := sc.transform(raw)

	rng := rand.New(rand.NewPCG(d.Seed, d.Seed))
	f := growForest(x, trees, maxSamples, rng)

	scores := make([]float64, len(x))
	for i, row := range x {
		scores[i] = f.score(row)
	}

	m := &Model{
		scaler:    sc,
		forest:    f,
		threshold: percentile(scores, 100*d.Contamination),
		trainedOn: len(records),
		highAlloc: d.highAllocation(),
	}

	if d.logger != nil {
		d.logger.Info("anomaly model fitted",
			zap.Int("records", len(records)),
			zap.Int("trees", trees),
			zap.Int("sample_size", f.sampleSize),
			zap.Float64("threshold", m.threshold),
			zap.Strings("features", FeatureNames[:]))
	}
	return m, nil
}

func (d *Detector) highAllocation() float64 {
	if d.HighAllocation <= 0 {
		return HighAllocationThreshold
	}
	return d.HighAllocation
}

// Detect scores records with m. A nil model returns ErrNotFitted.
func (d *Detector) Detect(m *Model, records []domain.PRGIRecord) ([]domain.AnomalyFlag, error) {
	if m == nil {
		return nil, ErrNotFitted
	}
	return m.Detect(records), nil
}

// Detect fills both the statistical and rule fields for every record.
// Calling it on a nil model panics with ErrNotFitted.
func (m *Model) Detect(records []domain.PRGIRecord) []domain.AnomalyFlag {
	if m == nil || m.forest == nil {
		panic(ErrNotFitted)
	}

	raw := engineer(records)
	x := m.scaler.transform(raw)

	out := make([]domain.AnomalyFlag, len(records))
	for i, r := range records {
		score := m.forest.score(x[i])
		f := domain.AnomalyFlag{
			PRGIRecord:   r,
			AnomalyScore: score,
			IsAnomaly:    score < m.threshold,
		}
		if f.IsAnomaly {
			f.AnomalyReason = explain(r, raw[i][featRollingMean], raw[i][featRollingStd])
		}
		applyRules(&f, m.highAlloc)
		out[i] = f
	}
	return out
}

// explain lists why an outlier looks suspicious, most specific first.
func explain(r domain.PRGIRecord, rollingMean, rollingStd float64) string {
	var reasons []string
	if r.PRGI >= 0.99 {
		reasons = append(reasons, "100% delivery gap (possible data error)")
	}
	if r.Allocation > 0 && r.Distribution == 0 {
		reasons = append(reasons, "Zero distribution despite allocation")
	}
	if r.PRGI > 0.5 {
		reasons = append(reasons, fmt.Sprintf("Unusually high gap (%.1f%%)", r.PRGI*100))
	}
	if rollingStd > 0 {
		if z := math.Abs((r.PRGI - rollingMean) / rollingStd); z > 2 {
			reasons = append(reasons, fmt.Sprintf("Large deviation from trend (Z=%.1f)", z))
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Statistical outlier (Isolation Forest)")
	}
	return strings.Join(reasons, "; ")
}

package pipeline

import (
	"errors"
	"fmt"

	"civinigrani/internal/anomaly"
	"civinigrani/internal/config"
	"civinigrani/internal/ingestion"
	"civinigrani/internal/peerlens"
	"civinigrani/internal/population"
	"civinigrani/internal/prgi"
	"civinigrani/internal/reporting"
	"civinigrani/internal/risk"
	"civinigrani/internal/spike"
	"civinigrani/internal/storage"
)

// Options holds every analysis parameter of one run.
type Options struct {
	TargetState string
	Thresholds  prgi.Thresholds

	TopN       int
	RiskWindow int

	SpikeSensitivity float64
	SpikeWindow      int
	TrendFloor       float64
	LagMonths        int

	Contamination  float64
	Trees          int
	Seed           uint64
	HighAllocation float64

	Peers peerlens.Options
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		TargetState:      "Uttar Pradesh",
		Thresholds:       prgi.DefaultThresholds,
		TopN:             10,
		RiskWindow:       risk.DefaultWindow,
		SpikeSensitivity: spike.DefaultSensitivity,
		SpikeWindow:      spike.DefaultWindow,
		TrendFloor:       spike.TrendFloor,
		LagMonths:        1,
		Contamination:    anomaly.DefaultContamination,
		Trees:            anomaly.DefaultTrees,
		Seed:             anomaly.DefaultSeed,
		HighAllocation:   anomaly.HighAllocationThreshold,
		Peers:            peerlens.DefaultOptions(),
	}
}

// OptionsFromConfig maps a validated configuration onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TargetState: cfg.Data.TargetState,
		Thresholds: prgi.Thresholds{
			Moderate: cfg.PRGI.ModerateThreshold,
			Critical: cfg.PRGI.CriticalThreshold,
		},
		TopN:             cfg.Risk.TopN,
		RiskWindow:       cfg.Risk.WindowMonths,
		SpikeSensitivity: cfg.Spike.Sensitivity,
		SpikeWindow:      cfg.Spike.Window,
		TrendFloor:       cfg.Spike.TrendFloor,
		LagMonths:        cfg.Spike.LagMonths,
		Contamination:    cfg.Anomaly.Contamination,
		Trees:            cfg.Anomaly.Trees,
		Seed:             cfg.Anomaly.Seed,
		HighAllocation:   cfg.Anomaly.HighAllocation,
		Peers: peerlens.Options{
			Alpha:    cfg.PeerLens.Alpha,
			Beta:     cfg.PeerLens.Beta,
			MinPeers: cfg.PeerLens.MinPeers,
		},
	}
}

// NewReportGenerator returns a report generator over stores that ranks,
// classifies and detects spikes with opts.
func NewReportGenerator(stores storage.Stores, opts Options) *reporting.Generator {
	return reporting.NewGenerator(stores).
		WithThresholds(opts.Thresholds).
		WithRanker(risk.NewRanker(opts.RiskWindow), opts.TopN).
		WithSpikeDetector(opts.spikeDetector())
}

func (o Options) spikeDetector() *spike.Detector {
	d := spike.NewDetector(o.SpikeSensitivity)
	if o.SpikeWindow > 0 {
		d.Window = o.SpikeWindow
	}
	d.Floor = o.TrendFloor
	return d
}

func (o Options) anomalyDetector() *anomaly.Detector {
	d := anomaly.NewDetector()
	if o.Contamination > 0 {
		d.Contamination = o.Contamination
	}
	if o.Trees > 0 {
		d.Trees = o.Trees
	}
	d.Seed = o.Seed
	d.HighAllocation = o.HighAllocation
	return d
}

// InputsFromConfig builds file-backed sources for the configured data paths.
// The grievance source picks the newest file matching the configured patterns.
func InputsFromConfig(cfg *config.Config) (Inputs, error) {
	in := Inputs{PDS: ingestion.NewFileSource(cfg.Data.PDSPath)}
	if cfg.Data.GrievanceDir != "" && len(cfg.Data.GrievancePatterns) > 0 {
		in.Grievance = ingestion.NewGlobSource(cfg.Data.GrievanceDir, cfg.Data.GrievancePatterns...)
	}
	if cfg.Data.ReceiptsPath != "" {
		in.Receipts = ingestion.NewFileSource(cfg.Data.ReceiptsPath)
	}
	if cfg.Data.PopulationPath != "" {
		pop, err := population.Load(cfg.Data.PopulationPath)
		if err != nil && !errors.Is(err, population.ErrNoDistricts) {
			return Inputs{}, fmt.Errorf("load population: %w", err)
		}
		in.Population = pop
	}
	return in, nil
}

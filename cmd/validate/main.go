// Package main back-tests grievance spikes against later PRGI movement and
// writes the PGSM case study.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"civinigrani/internal/config"
	"civinigrani/internal/domain"
	"civinigrani/internal/logger"
	"civinigrani/internal/normalization"
	"civinigrani/internal/pipeline"
	"civinigrani/internal/reporting"
	"civinigrani/internal/validation"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	outputDir := flag.String("output", "", "Output directory (overrides output.dir)")
	lag := flag.Int("lag", 0, "Months between spike and PRGI check (overrides spike.lag_months)")
	useFixtures := flag.Bool("fixtures", false, "Run on the built-in synthetic dataset")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *lag > 0 {
		cfg.Spike.LagMonths = *lag
	}
	if *useFixtures {
		cfg.Data.TargetState = pipeline.FixtureState
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync() //nolint:errcheck

	var in pipeline.Inputs
	if *useFixtures {
		in = pipeline.FixtureInputs()
	} else if in, err = pipeline.InputsFromConfig(cfg); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	// In-memory stores: validation never writes to the configured backend.
	out, err := pipeline.New(pipeline.OptionsFromConfig(cfg)).WithLogger(log).Run(context.Background(), in)
	if err != nil {
		color.Red("Error running pipeline: %v", err)
		os.Exit(1)
	}

	printSummary(out.Validation, cfg.Spike.LagMonths)

	written, err := reporting.WriteFiles(cfg.Output.Dir, map[string]string{
		reporting.CaseStudyFilename: out.Files[reporting.CaseStudyFilename],
	})
	if err != nil {
		color.Red("Error writing case study: %v", err)
		os.Exit(1)
	}
	color.Green("\nCase study written to %s", filepath.Clean(written[0]))
}

func printSummary(s validation.Summary, lag int) {
	color.Cyan("\n=== PGSM spike validation (lag %d month(s)) ===", lag)
	if s.Total == 0 {
		color.Yellow("No spikes had PRGI data for both the spike month and the follow-up month.")
		return
	}

	fmt.Printf("Spikes tested: %d  Correct: %d  Accuracy: %.1f%%  Mean delta: %+.4f  Districts: %d\n",
		s.Total, s.Correct, s.Accuracy, s.MeanDelta, s.Districts)

	if len(s.Top) == 0 {
		return
	}
	color.Yellow("\nStrongest cases")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"District", "Spike Month", "Intensity", "PRGI Before", "PRGI After", "Delta"})
	for _, c := range s.Top {
		table.Append([]string{
			normalization.TitleCase(c.District),
			c.SpikeMonth.Format(domain.MonthLayout),
			fmt.Sprintf("%.2fx", c.Intensity),
			fmt.Sprintf("%.4f", c.BaselinePRGI),
			fmt.Sprintf("%.4f", c.FuturePRGI),
			fmt.Sprintf("%+.4f", c.Delta),
		})
	}
	table.Render()
}

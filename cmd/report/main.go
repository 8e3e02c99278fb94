package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"civinigrani/internal/config"
	"civinigrani/internal/logger"
	"civinigrani/internal/pipeline"
	"civinigrani/internal/reporting"
	"civinigrani/internal/storage"
	"civinigrani/internal/storage/backend"
)

// Re-renders PRGI_REPORT.md from the stored tables without re-ingesting
// anything. The tables hold the latest successful run, so only that run can
// be rendered.
func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	outputDir := flag.String("output", "", "Output directory (overrides output.dir)")
	runID := flag.String("run", "", "Run ID to render (must be the latest successful run)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "Error: the memory backend keeps no runs; set storage.backend")
		os.Exit(1)
	}

	log := logger.Must(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	snapshot, err := pipeline.SnapshotRun(ctx, stores.Run)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v; run cmd/pipeline first\n", err)
		os.Exit(1)
	}
	id := snapshot.RunID
	if *runID != "" && *runID != id {
		fmt.Fprintf(os.Stderr, "Error: stored tables hold run %s; run %s can no longer be rendered\n", id, *runID)
		os.Exit(1)
	}

	r, err := pipeline.NewReportGenerator(stores, pipeline.OptionsFromConfig(cfg)).Generate(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: run %s not found\n", id)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	written, err := reporting.WriteFiles(cfg.Output.Dir, map[string]string{
		reporting.ReportFilename: reporting.RenderMarkdown(r),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for run %s generated successfully:\n", id)
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
}

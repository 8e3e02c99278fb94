// Package main runs one analysis pass: ingest, PRGI, persistence, analytics,
// reports and alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"civinigrani/internal/config"
	"civinigrani/internal/domain"
	"civinigrani/internal/logger"
	"civinigrani/internal/normalization"
	"civinigrani/internal/notify"
	"civinigrani/internal/pipeline"
	"civinigrani/internal/prgi"
	"civinigrani/internal/reporting"
	"civinigrani/internal/storage/backend"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	outputDir := flag.String("output", "", "Output directory (overrides output.dir)")
	useFixtures := flag.Bool("fixtures", false, "Run on the built-in synthetic dataset")
	topN := flag.Int("top", 0, "Leaderboard size (overrides risk.top_n)")
	district := flag.String("district", "", "Print the peer comparison for one district")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *topN > 0 {
		cfg.Risk.TopN = *topN
	}
	if *useFixtures {
		cfg.Data.TargetState = pipeline.FixtureState
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *useFixtures, *district, log); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, useFixtures bool, district string, log *zap.Logger) error {
	stores, cleanup, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer cleanup()

	var in pipeline.Inputs
	if useFixtures {
		in = pipeline.FixtureInputs()
	} else if in, err = pipeline.InputsFromConfig(cfg); err != nil {
		return err
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay, log)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		notifier = tg
	}

	p := pipeline.New(pipeline.OptionsFromConfig(cfg)).
		WithStores(stores).
		WithNotifier(notifier).
		WithLogger(log)

	out, err := p.Run(ctx, in)
	if err != nil {
		return err
	}

	written, err := reporting.WriteFiles(cfg.Output.Dir, out.Files)
	if err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	printSummary(out)
	if district != "" {
		printPeer(out.Peers, district)
	}

	color.Green("\nReports written:")
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}
	return nil
}

func printSummary(out *pipeline.Output) {
	color.Cyan("\n=== PRGI run %s (%s) ===", out.Run.RunID, out.Run.Status)
	fmt.Printf("Records: %d  Spikes: %d  Trend alerts: %d  Anomalies: %d\n",
		out.Run.Records, len(out.Spikes), len(out.TrendAlerts), out.Run.Anomalies)

	if out.Report == nil || len(out.Report.Leaderboard) == 0 {
		color.Yellow("\nNo districts to rank.")
		return
	}

	color.Yellow("\nHigh-Risk Districts")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rank", "District", "Avg PRGI", "Latest", "Severity"})
	for _, row := range out.Report.Leaderboard {
		latest := "-"
		if row.LatestPRGI != nil {
			latest = fmt.Sprintf("%.4f", *row.LatestPRGI)
		}
		severity := string(row.Severity)
		if row.Severity == prgi.SeverityCritical {
			severity = color.RedString(severity)
		}
		table.Append([]string{
			fmt.Sprintf("%d", row.Rank),
			row.District,
			fmt.Sprintf("%.4f", row.AvgPRGI),
			latest,
			severity,
		})
	}
	table.Render()

	if len(out.TrendAlerts) > 0 {
		color.Yellow("\nPRGI Trend Alerts")
		for _, a := range out.TrendAlerts {
			fmt.Printf("  %s %s: %.4f (recent mean %.4f)\n",
				a.Month.Format(domain.MonthLayout), normalization.TitleCase(a.District), a.Latest, a.RecentMean)
		}
	}
}

func printPeer(peers []domain.PeerComparison, district string) {
	name := normalization.NormalizeName(district)
	for _, c := range peers {
		if c.District == name {
			color.Yellow("\nPeer comparison")
			fmt.Print(reporting.RenderPeerMessage(c))
			return
		}
	}
	color.Red("\nNo peer comparison for %q", district)
}

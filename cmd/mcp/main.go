// Package main serves the data tools and PeerLens over the MCP stdio
// transport. Logs go to stderr so stdout stays protocol-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"civinigrani/internal/config"
	"civinigrani/internal/datatools"
	"civinigrani/internal/logger"
	"civinigrani/internal/mcpserver"
	"civinigrani/internal/peerlens"
	"civinigrani/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	useFixtures := flag.Bool("fixtures", false, "Serve the built-in synthetic dataset")
	flag.Parse()

	if err := run(*configPath, *useFixtures); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useFixtures bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if useFixtures {
		cfg.Data.TargetState = pipeline.FixtureState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var in pipeline.Inputs
	if useFixtures {
		in = pipeline.FixtureInputs()
	} else if in, err = pipeline.InputsFromConfig(cfg); err != nil {
		return err
	}

	opts := pipeline.OptionsFromConfig(cfg)
	out, err := pipeline.New(opts).WithLogger(log).Run(ctx, in)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	log.Info("serving MCP tools",
		zap.Int("records", len(out.Records)),
		zap.Int("receipts", len(out.Receipts)),
		zap.String("data_version", out.Run.DataVersion))

	tools := datatools.New(out.Records, out.Receipts)
	peers := peerlens.New(out.Records, out.Population, out.Receipts, opts.Peers).WithLogger(log)

	return server.ServeStdio(mcpserver.New(tools, peers, log))
}

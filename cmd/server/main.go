// Package main runs the pipeline on a schedule and serves health, status and
// Prometheus metrics over HTTP. Alerts go to Telegram when enabled.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"civinigrani/internal/config"
	"civinigrani/internal/logger"
	"civinigrani/internal/notify"
	"civinigrani/internal/observability"
	"civinigrani/internal/pipeline"
	"civinigrani/internal/reporting"
	"civinigrani/internal/storage/backend"
)

// Server holds the scheduler state.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
	started  time.Time

	mu         sync.Mutex
	running    bool
	runs       int
	failures   int
	lastRun    time.Time
	lastRunID  string
	lastStatus string
	lastError  string
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer cleanup()

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay, log)
		if err != nil {
			log.Fatal("failed to create telegram notifier", zap.Error(err))
		}
		notifier = tg
		log.Info("telegram alerts enabled")
	}

	server := &Server{
		cfg: cfg,
		pipeline: pipeline.New(pipeline.OptionsFromConfig(cfg)).
			WithStores(stores).
			WithNotifier(notifier).
			WithCache(cfg.Server.CacheTTL).
			WithLogger(log),
		logger:  log,
		started: time.Now(),
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		// A second signal forces exit
		select {
		case sig := <-sigCh:
			log.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := server.startHTTPServer(cfg.Server.MetricsAddr)

	err = server.Run(ctx)
	close(done)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http shutdown failed", zap.Error(shutdownErr))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// Run executes the pipeline immediately, then on every tick of the
// configured interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", zap.Duration("interval", s.cfg.Server.Interval))

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Server.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes one pipeline run and writes its reports. Overlapping
// runs are skipped.
func (s *Server) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("pipeline already running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	var (
		runID  string
		status string
		runErr error
	)
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.lastRun = time.Now()
		s.runs++
		s.lastRunID = runID
		s.lastStatus = status
		s.lastError = ""
		if runErr != nil {
			s.failures++
			s.lastError = runErr.Error()
		}
	}()

	in, err := pipeline.InputsFromConfig(s.cfg)
	if err != nil {
		runErr = err
		status = "FAILED"
		s.logger.Error("failed to build inputs", zap.Error(err))
		return
	}

	out, err := s.pipeline.Run(ctx, in)
	if err != nil {
		runErr = err
		status = "FAILED"
		s.logger.Error("pipeline run failed", zap.Error(err))
		return
	}
	runID, status = out.Run.RunID, out.Run.Status

	if _, err := reporting.WriteFiles(s.cfg.Output.Dir, out.Files); err != nil {
		runErr = err
		s.logger.Error("failed to write reports", zap.Error(err))
		return
	}
	s.logger.Info("reports written", zap.String("dir", s.cfg.Output.Dir), zap.Int("files", len(out.Files)))
}

// startHTTPServer serves /health, /status and /metrics in the background.
func (s *Server) startHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("starting http server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return srv
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Running    bool      `json:"running"`
	Runs       int       `json:"runs"`
	Failures   int       `json:"failures"`
	LastRun    time.Time `json:"last_run,omitempty"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStatus string    `json:"last_status,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Running:    s.running,
		Runs:       s.runs,
		Failures:   s.failures,
		LastRun:    s.lastRun,
		LastRunID:  s.lastRunID,
		LastStatus: s.lastStatus,
		LastError:  s.lastError,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// Package pipeline runs the full analysis: ingest, compute PRGI, persist,
// analyze, report and alert.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"civinigrani/internal/cache"
	"civinigrani/internal/domain"
	"civinigrani/internal/grievance"
	"civinigrani/internal/idhash"
	"civinigrani/internal/ingestion"
	"civinigrani/internal/notify"
	"civinigrani/internal/observability"
	"civinigrani/internal/peerlens"
	"civinigrani/internal/population"
	"civinigrani/internal/prgi"
	"civinigrani/internal/reporting"
	"civinigrani/internal/risk"
	"civinigrani/internal/spike"
	"civinigrani/internal/storage"
	"civinigrani/internal/storage/memory"
	"civinigrani/internal/validation"
)

// Inputs names the raw sources of one run. Only PDS is required.
type Inputs struct {
	PDS        ingestion.TableSource
	Grievance  ingestion.TableSource
	Receipts   ingestion.TableSource
	Population *population.Table
}

// Output is everything one run produced.
type Output struct {
	Run domain.RunRecord

	Records     []domain.PRGIRecord // derived by this run, (month, district) order
	Stats       prgi.Stats
	Leaderboard []domain.RiskEntry
	SpikeFlags  []domain.SpikeFlag // every grievance observation
	Spikes      []domain.SpikeFlag
	TrendAlerts []domain.TrendAlert
	Anomalies   []domain.AnomalyFlag
	Peers       []domain.PeerComparison
	Receipts    []domain.GrievanceReceipt
	Population  *population.Table
	Validation  validation.Summary
	Sufficiency *SufficiencyResult
	Alerts      []notify.Alert

	Report *reporting.Report
	Files  map[string]string // output filename -> contents
}

// computed is the cacheable result of the PRGI stage.
type computed struct {
	result domain.Result[[]domain.PRGIRecord]
	stats  prgi.Stats
}

// Pipeline coordinates one analysis run over a set of stores.
type Pipeline struct {
	opts     Options
	stores   storage.Stores
	notifier notify.Notifier
	cache    *cache.TTL[computed]
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() string
}

// New creates a pipeline backed by fresh in-memory stores.
func New(opts Options) *Pipeline {
	return &Pipeline{
		opts:     opts,
		stores:   memory.NewStores(),
		notifier: notify.Noop{},
		logger:   zap.NewNop(),
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// WithStores sets the persistence backend. Nil stores fall back to memory.
func (p *Pipeline) WithStores(s storage.Stores) *Pipeline {
	p.stores = memory.Fill(s)
	return p
}

// WithNotifier sets the alert sink.
func (p *Pipeline) WithNotifier(n notify.Notifier) *Pipeline {
	if n == nil {
		n = notify.Noop{}
	}
	p.notifier = n
	return p
}

// WithCache memoizes the PRGI stage for ttl, keyed by the PDS source fingerprint.
func (p *Pipeline) WithCache(ttl time.Duration) *Pipeline {
	if ttl <= 0 {
		p.cache = nil
		return p
	}
	p.cache = cache.New[computed](ttl, p.clock)
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.logger = logger
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithRunID fixes the run identifier generator, for reproducible output.
func (p *Pipeline) WithRunID(newID func() string) *Pipeline {
	p.newID = newID
	return p
}

// Stores returns the pipeline's stores.
func (p *Pipeline) Stores() storage.Stores {
	return p.stores
}

// Run executes every stage. Missing or unreadable inputs degrade the run to
// an EMPTY status with empty sections; only storage failures return an error.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Output, error) {
	started := p.clock()
	out := &Output{
		Run: domain.RunRecord{
			RunID:       p.newID(),
			StartedAt:   started,
			TargetState: p.opts.TargetState,
		},
		Population: in.Population,
	}
	log := p.logger.With(zap.String("run_id", out.Run.RunID))

	// Stage 1: ingest and compute PRGI
	res, stats := p.computePRGI(ctx, in.PDS, log)
	out.Stats = stats
	observability.RecordRows("pds", stats.RowsIn, map[string]int{
		"other_state": stats.RowsOtherState,
		"bad_month":   stats.RowsBadMonth,
		"no_district": stats.RowsNoDistrict,
	})

	signals := p.loadSignals(ctx, in.Grievance, log)
	out.Receipts = p.loadReceipts(ctx, in.Receipts, log)
	if out.Population == nil {
		out.Population = population.New(nil)
	}

	// Stage 2: archive this run's derivation
	records := slices.Clone(res.Value)
	out.Records = records
	if err := p.timed("persist", func() error { return p.persist(ctx, records, signals) }); err != nil {
		return nil, p.fail(ctx, out, log, fmt.Errorf("persist: %w", err))
	}

	// Stage 3: analytics
	p.timedStep("analyze", func() { p.analyze(out, signals, log) })

	// Stage 4: run record and flags
	out.Run.FinishedAt = p.clock()
	out.Run.DataVersion = idhash.DataVersion(records)
	out.Run.Records = len(records)
	out.Run.Spikes = len(out.Spikes)
	out.Run.Anomalies = countFlagged(out.Anomalies)
	out.Run.Status = domain.RunStatusSuccess
	if len(records) == 0 {
		out.Run.Status = domain.RunStatusEmpty
	}
	if err := p.stores.Run.Insert(ctx, &out.Run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if len(out.Anomalies) > 0 {
		if err := p.stores.Anomaly.InsertBulk(ctx, out.Run.RunID, out.Anomalies); err != nil {
			return nil, fmt.Errorf("insert anomaly flags: %w", err)
		}
	}

	// Stage 5: report
	p.timedStep("report", func() { p.report(out, signals, stats) })

	// Stage 6: alerts
	p.alert(ctx, out, log)

	observability.RecordPipelineRun("total", "success", p.clock().Sub(started).Seconds())
	observability.RecordPipelineSuccess(p.clock().Unix())
	log.Info("pipeline run complete",
		zap.String("status", out.Run.Status),
		zap.String("data_version", out.Run.DataVersion),
		zap.Int("records", len(records)),
		zap.Int("spikes", len(out.Spikes)),
		zap.Int("trend_alerts", len(out.TrendAlerts)),
		zap.Int("anomalies", out.Run.Anomalies),
		zap.Int("alerts", len(out.Alerts)))
	return out, nil
}

// computePRGI fetches the PDS table and runs the engine, through the cache
// when one is configured.
func (p *Pipeline) computePRGI(ctx context.Context, src ingestion.TableSource, log *zap.Logger) (domain.Result[[]domain.PRGIRecord], prgi.Stats) {
	if src == nil {
		log.Warn("no PDS source configured")
		return domain.Empty[[]domain.PRGIRecord]("no PDS source configured"), prgi.Stats{}
	}

	compute := func() (computed, error) {
		t, err := src.Fetch(ctx)
		if err != nil {
			return computed{}, err
		}
		res, stats := prgi.NewEngine(p.opts.TargetState).WithLogger(log).ComputeWithStats(t)
		return computed{result: res, stats: stats}, nil
	}

	var (
		c   computed
		err error
	)
	fp, fpErr := src.Fingerprint()
	if p.cache != nil && fpErr == nil {
		miss := false
		c, err = p.cache.GetOrCompute(idhash.Fingerprint(fp, p.opts.TargetState), func() (computed, error) {
			miss = true
			return compute()
		})
		if err == nil {
			observability.RecordCacheLookup(!miss)
		}
	} else {
		c, err = compute()
	}

	if err != nil {
		log.Warn("PDS source unreadable", zap.Error(err))
		return domain.Empty[[]domain.PRGIRecord](fmt.Sprintf("PDS source unreadable: %v", err)), prgi.Stats{}
	}
	if !c.result.IsOK() {
		log.Warn("PRGI computation produced no records", zap.String("reason", c.result.Describe()))
	}
	return c.result, c.stats
}

func (p *Pipeline) loadSignals(ctx context.Context, src ingestion.TableSource, log *zap.Logger) []domain.GrievanceSignal {
	if src == nil {
		return nil
	}
	t, err := src.Fetch(ctx)
	if err != nil {
		log.Warn("grievance source unreadable", zap.Error(err))
		return nil
	}
	observability.RecordRows("grievance", t.Len(), nil)
	res := grievance.Load(t)
	if !res.IsOK() {
		log.Warn("no grievance signals loaded", zap.String("reason", res.Describe()))
		return nil
	}
	return mergeSignals(res.Value)
}

func (p *Pipeline) loadReceipts(ctx context.Context, src ingestion.TableSource, log *zap.Logger) []domain.GrievanceReceipt {
	if src == nil {
		return nil
	}
	t, err := src.Fetch(ctx)
	if err != nil {
		log.Warn("receipts source unreadable", zap.Error(err))
		return nil
	}
	observability.RecordRows("receipts", t.Len(), nil)
	res := grievance.LoadReceipts(t)
	if !res.IsOK() {
		log.Warn("no receipts loaded", zap.String("reason", res.Describe()))
		return nil
	}
	return res.Value
}

// mergeSignals sums rows that share a (month, district, source) key and
// orders the result by that key.
func mergeSignals(signals []domain.GrievanceSignal) []domain.GrievanceSignal {
	index := make(map[string]int, len(signals))
	var out []domain.GrievanceSignal
	for _, s := range signals {
		if i, ok := index[s.Key()]; ok {
			out[i].Signals += s.Signals
			continue
		}
		index[s.Key()] = len(out)
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Month.Equal(b.Month) {
			return a.Month.Before(b.Month)
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.Source < b.Source
	})
	return out
}

// persist replaces the stored tables with this run's derivation, so the
// archive mirrors the current sources. A run that derived no PRGI rows
// leaves the last snapshot in place.
func (p *Pipeline) persist(ctx context.Context, records []domain.PRGIRecord, signals []domain.GrievanceSignal) error {
	if len(records) == 0 {
		p.logger.Debug("no PRGI records derived, stored snapshot kept")
		return nil
	}

	start := time.Now()
	err := p.stores.PRGI.ReplaceAll(ctx, records)
	observability.RecordDBQuery("prgi_records", "replace", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("replace PRGI records: %w", err)
	}

	start = time.Now()
	err = p.stores.Grievance.ReplaceAll(ctx, signals)
	observability.RecordDBQuery("grievance_signals", "replace", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("replace grievance signals: %w", err)
	}

	p.logger.Debug("stored snapshot replaced", zap.Int("records", len(records)), zap.Int("signals", len(signals)))
	return nil
}

// analyze runs ranking, early warning, anomaly detection, peers and validation.
func (p *Pipeline) analyze(out *Output, signals []domain.GrievanceSignal, log *zap.Logger) {
	records := out.Records

	out.Leaderboard = risk.NewRanker(p.opts.RiskWindow).Rank(records, p.opts.TopN)

	detector := p.opts.spikeDetector()
	out.SpikeFlags = detector.Detect(signals)
	out.Spikes = spike.Spikes(out.SpikeFlags)
	out.TrendAlerts = detector.TrendAlerts(records)

	ad := p.opts.anomalyDetector().WithLogger(log)
	model, err := ad.Fit(records)
	switch {
	case err == nil:
		out.Anomalies = model.Detect(records)
	case len(records) > 0:
		log.Warn("anomaly model not fitted, rule pass only", zap.Error(err))
		out.Anomalies = ad.DetectSimple(records)
	}

	if len(records) > 0 {
		out.Peers = peerlens.New(records, out.Population, out.Receipts, p.opts.Peers).WithLogger(log).AnalyzeAll()
	}
	for _, c := range out.Peers {
		observability.RecordPeerComparison(c.Valid)
	}

	out.Validation = validation.Summarize(validation.Correlate(out.Spikes, records, p.opts.LagMonths))

	out.Sufficiency = CheckData(records, signals, p.opts.Peers.MinPeers, detector.Window)

	critical := 0
	for _, e := range out.Leaderboard {
		if e.AvgPRGI > p.opts.Thresholds.Critical {
			critical++
		}
	}
	simple, statistical := 0, 0
	for _, f := range out.Anomalies {
		if f.IsSimpleAnomaly {
			simple++
		}
		if f.IsAnomaly {
			statistical++
		}
	}
	observability.RecordAnalytics(len(records), len(out.Spikes), len(out.TrendAlerts), simple, statistical, critical)
}

// report renders every output file from this run's tables.
func (p *Pipeline) report(out *Output, signals []domain.GrievanceSignal, stats prgi.Stats) {
	r := NewReportGenerator(p.stores, p.opts).WithClock(p.clock).Build(out.Run, out.Records, signals, out.Anomalies)
	r.DataSummary.RowsIn = stats.RowsIn
	r.DataSummary.RowsDropped = stats.Dropped()
	r.PeerComparisons = out.Peers
	r.DataQuality = convertToDataQuality(out.Sufficiency)
	out.Report = r

	files := reporting.CSVFiles(r, out.Records, out.SpikeFlags, out.Anomalies)
	files[reporting.ReportFilename] = reporting.RenderMarkdown(r)
	files[reporting.CaseStudyFilename] = reporting.RenderCaseStudy(out.Validation, p.opts.LagMonths, r.GeneratedAt)
	out.Files = files

	observability.RecordReport()
}

// convertToDataQuality converts a SufficiencyResult to the report section.
func convertToDataQuality(result *SufficiencyResult) reporting.DataQualitySection {
	if result == nil {
		return reporting.DataQualitySection{}
	}
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		SufficiencyChecks: checks,
		IntegrityErrors:   result.Errors,
		AllChecksPassed:   result.AllPass,
	}
}

// alert sends one batch: critical leaderboard entries, trend alerts and
// spikes in the latest grievance month.
func (p *Pipeline) alert(ctx context.Context, out *Output, log *zap.Logger) {
	var alerts []notify.Alert
	for _, e := range out.Leaderboard {
		if e.AvgPRGI > p.opts.Thresholds.Critical {
			alerts = append(alerts, notify.FromRisk(e, p.opts.Thresholds.Critical))
		}
	}
	for _, a := range out.TrendAlerts {
		alerts = append(alerts, notify.FromTrend(a))
	}
	for _, s := range latestSpikes(out.Spikes) {
		alerts = append(alerts, notify.FromSpike(s))
	}
	out.Alerts = alerts
	if len(alerts) == 0 {
		return
	}

	kinds := make([]string, len(alerts))
	for i, a := range alerts {
		kinds[i] = string(a.Kind)
	}
	err := p.notifier.Send(ctx, alerts)
	observability.RecordAlerts(kinds, err)
	if err != nil {
		log.Error("alert delivery failed", zap.Int("alerts", len(alerts)), zap.Error(err))
	}
}

// latestSpikes keeps spikes from the most recent month. Older spikes were
// alerted on by earlier runs.
func latestSpikes(spikes []domain.SpikeFlag) []domain.SpikeFlag {
	var latest time.Time
	for _, s := range spikes {
		if s.Month.After(latest) {
			latest = s.Month
		}
	}
	var out []domain.SpikeFlag
	for _, s := range spikes {
		if s.Month.Equal(latest) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out
}

func countFlagged(flags []domain.AnomalyFlag) int {
	n := 0
	for _, f := range flags {
		if f.IsAnomaly || f.IsSimpleAnomaly {
			n++
		}
	}
	return n
}

// timed runs fn and records its stage duration and status.
func (p *Pipeline) timed(stage string, fn func() error) error {
	start := p.clock()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordPipelineRun(stage, status, p.clock().Sub(start).Seconds())
	return err
}

// timedStep runs fn and records its stage duration.
func (p *Pipeline) timedStep(stage string, fn func()) {
	start := p.clock()
	fn()
	observability.RecordPipelineRun(stage, "success", p.clock().Sub(start).Seconds())
}

// fail records a FAILED run when the run store is still reachable.
func (p *Pipeline) fail(ctx context.Context, out *Output, log *zap.Logger, err error) error {
	out.Run.FinishedAt = p.clock()
	out.Run.Status = domain.RunStatusFailed
	if insErr := p.stores.Run.Insert(ctx, &out.Run); insErr != nil && !errors.Is(insErr, storage.ErrDuplicateKey) {
		log.Warn("failed run not recorded", zap.Error(insErr))
	}
	observability.RecordPipelineRun("total", "error", out.Run.FinishedAt.Sub(out.Run.StartedAt).Seconds())
	log.Error("pipeline run failed", zap.Error(err))
	return err
}

package pipeline

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/ingestion"
	"civinigrani/internal/notify"
	"civinigrani/internal/reporting"
	"civinigrani/internal/storage"
	"civinigrani/internal/storage/memory"
)

var fixedTime = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func fixedPipeline(runID string) *Pipeline {
	opts := DefaultOptions()
	opts.TargetState = FixtureState
	return New(opts).
		WithClock(func() time.Time { return fixedTime }).
		WithRunID(func() string { return runID })
}

// countingSource counts fetches of a wrapped source.
type countingSource struct {
	ingestion.TableSource
	fetches atomic.Int32
}

func (s *countingSource) Fetch(ctx context.Context) (*ingestion.Table, error) {
	s.fetches.Add(1)
	return s.TableSource.Fetch(ctx)
}

// failingPRGIStore rejects every write.
type failingPRGIStore struct {
	storage.PRGIStore
}

func (failingPRGIStore) InsertBulk(context.Context, []domain.PRGIRecord) error {
	return errors.New("disk full")
}

func (failingPRGIStore) ReplaceAll(context.Context, []domain.PRGIRecord) error {
	return errors.New("disk full")
}

func TestPipeline_RunFixtures(t *testing.T) {
	ctx := context.Background()
	recorder := &notify.Recorder{}
	p := fixedPipeline("run-1").WithNotifier(recorder)

	out, err := p.Run(ctx, FixtureInputs())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Run.Status != domain.RunStatusSuccess {
		t.Errorf("Status: got %s, want %s", out.Run.Status, domain.RunStatusSuccess)
	}
	if len(out.Records) != 48 {
		t.Errorf("Records: got %d, want 48", len(out.Records))
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(out.Run.DataVersion) {
		t.Errorf("DataVersion: got %q, want 12 hex chars", out.Run.DataVersion)
	}

	if len(out.Leaderboard) < 2 || out.Leaderboard[0].District != "mathura" || out.Leaderboard[1].District != "banda" {
		t.Fatalf("Leaderboard head: got %+v", out.Leaderboard)
	}
	if math.Abs(out.Leaderboard[1].AvgPRGI-(0.11+0.12+0.45)/3) > 1e-6 {
		t.Errorf("Banda avg: got %v", out.Leaderboard[1].AvgPRGI)
	}

	if len(out.Spikes) != 2 {
		t.Fatalf("Spikes: got %d, want 2 (%+v)", len(out.Spikes), out.Spikes)
	}
	if len(out.SpikeFlags) != 48 {
		t.Errorf("SpikeFlags: got %d, want one per observation", len(out.SpikeFlags))
	}
	if len(out.TrendAlerts) != 1 || out.TrendAlerts[0].District != "banda" {
		t.Errorf("TrendAlerts: got %+v, want banda only", out.TrendAlerts)
	}
	if len(out.Anomalies) != 48 {
		t.Errorf("Anomalies: got %d flags, want one per record", len(out.Anomalies))
	}
	if len(out.Peers) != 8 {
		t.Errorf("Peers: got %d, want 8", len(out.Peers))
	}
	if out.Validation.Total != 1 || out.Validation.Correct != 1 {
		t.Errorf("Validation: got %+v, want the Agra March spike only", out.Validation)
	}
	if out.Sufficiency == nil || !out.Sufficiency.AllPass {
		t.Errorf("Sufficiency: got %+v", out.Sufficiency)
	}

	for _, name := range []string{
		reporting.ReportFilename, reporting.CaseStudyFilename,
		"prgi_records.csv", "risk_leaderboard.csv", "grievance_spikes.csv",
		"anomalies.csv", "peer_comparisons.csv",
	} {
		if out.Files[name] == "" {
			t.Errorf("Missing output %s", name)
		}
	}
	if !strings.Contains(out.Files[reporting.ReportFilename], "| run-1 | "+out.Run.DataVersion+" |") {
		t.Error("Report missing reproducibility metadata")
	}
	if !strings.Contains(out.Files[reporting.ReportFilename], "**All checks passed.**") {
		t.Error("Report missing data quality banner")
	}

	// One batch: Mathura critical, Banda trend, Banda June spike
	if recorder.Batches() != 1 {
		t.Fatalf("Batches: got %d, want 1", recorder.Batches())
	}
	kinds := map[notify.Kind]int{}
	for _, a := range recorder.Alerts() {
		kinds[a.Kind]++
	}
	if kinds[notify.KindCriticalRisk] != 1 || kinds[notify.KindPRGITrend] != 1 || kinds[notify.KindGrievanceSpike] != 1 {
		t.Errorf("Alert kinds: got %v", kinds)
	}
}

func TestPipeline_Deterministic(t *testing.T) {
	ctx := context.Background()

	out1, err := fixedPipeline("run-1").Run(ctx, FixtureInputs())
	if err != nil {
		t.Fatalf("Run 1 failed: %v", err)
	}
	out2, err := fixedPipeline("run-1").Run(ctx, FixtureInputs())
	if err != nil {
		t.Fatalf("Run 2 failed: %v", err)
	}

	if out1.Run.DataVersion != out2.Run.DataVersion {
		t.Errorf("DataVersion differs: %s vs %s", out1.Run.DataVersion, out2.Run.DataVersion)
	}
	for name, content := range out1.Files {
		if out2.Files[name] != content {
			t.Errorf("%s differs between identical runs", name)
		}
	}
}

// pdsSource builds a one-month PDS table from district -> (allocated, distributed).
func pdsSource(totals map[string][2]float64) ingestion.TableSource {
	t := &ingestion.Table{Columns: []string{
		"State_Name", "District_Name", "Month",
		"Total_Wheat_Allocated", "Total_Rice_Allocated",
		"Total_Wheat_Distributed", "Total_Rice_Distributed",
	}}
	for _, d := range []string{"Agra", "Banda"} {
		v, ok := totals[d]
		if !ok {
			continue
		}
		t.Rows = append(t.Rows, []string{
			FixtureState, d, "2024-01-01",
			strconv.FormatFloat(v[0]/2, 'f', 2, 64), strconv.FormatFloat(v[0]/2, 'f', 2, 64),
			strconv.FormatFloat(v[1]/2, 'f', 2, 64), strconv.FormatFloat(v[1]/2, 'f', 2, 64),
		})
	}
	return ingestion.NewStaticSource("pds", t)
}

func findRecord(records []domain.PRGIRecord, district string) (domain.PRGIRecord, bool) {
	for _, r := range records {
		if r.District == district {
			return r, true
		}
	}
	return domain.PRGIRecord{}, false
}

func TestPipeline_CorrectedSourceWins(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	n := 0
	p := fixedPipeline("").WithStores(stores).WithRunID(func() string {
		n++
		return "run-" + strconv.Itoa(n)
	})

	run := func(totals map[string][2]float64) *Output {
		t.Helper()
		out, err := p.Run(ctx, Inputs{PDS: pdsSource(totals)})
		if err != nil {
			t.Fatalf("Run %d failed: %v", n, err)
		}
		return out
	}

	first := run(map[string][2]float64{"Agra": {1000, 700}, "Banda": {1000, 800}})
	if r, ok := findRecord(first.Records, "agra"); !ok || math.Abs(r.PRGI-0.3) > 1e-9 {
		t.Fatalf("Run 1 agra: got %+v", r)
	}

	// A corrected distribution figure replaces the earlier month
	second := run(map[string][2]float64{"Agra": {1000, 900}, "Banda": {1000, 800}})
	if r, ok := findRecord(second.Records, "agra"); !ok || math.Abs(r.PRGI-0.1) > 1e-9 {
		t.Errorf("Run 2 agra: got %+v, want PRGI 0.1", r)
	}
	stored, _ := stores.PRGI.GetByDistrict(ctx, "agra")
	if len(stored) != 1 || math.Abs(stored[0].PRGI-0.1) > 1e-9 {
		t.Errorf("Stored agra after correction: got %+v", stored)
	}
	if first.Run.DataVersion == second.Run.DataVersion {
		t.Error("Corrected data should change the data version")
	}

	// A zero-allocation group drops out of the output and the archive
	third := run(map[string][2]float64{"Agra": {0, 0}, "Banda": {1000, 800}})
	if _, ok := findRecord(third.Records, "agra"); ok {
		t.Errorf("Run 3 still reports agra: %+v", third.Records)
	}
	if len(third.Records) != 1 || third.Run.Status != domain.RunStatusSuccess {
		t.Errorf("Run 3: got %d records, status %s", len(third.Records), third.Run.Status)
	}
	all, _ := stores.PRGI.GetAll(ctx)
	if len(all) != 1 || all[0].District != "banda" {
		t.Errorf("Stored table after run 3: got %+v", all)
	}

	// Nothing derivable: the run is EMPTY and reports no rows
	fourth := run(map[string][2]float64{"Agra": {0, 0}})
	if fourth.Run.Status != domain.RunStatusEmpty || len(fourth.Records) != 0 {
		t.Errorf("Run 4: got status %s with %d records", fourth.Run.Status, len(fourth.Records))
	}
	if len(fourth.Leaderboard) != 0 || len(fourth.Report.Leaderboard) != 0 {
		t.Errorf("Run 4 leaderboard should be empty, got %+v", fourth.Leaderboard)
	}

	runs, err := stores.Run.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(runs) != 4 {
		t.Errorf("Runs: got %d, want 4", len(runs))
	}
}

func TestPipeline_RepeatRunKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	ids := []string{"run-a", "run-b"}
	n := 0
	p := fixedPipeline("").WithStores(stores).WithRunID(func() string {
		id := ids[n]
		n++
		return id
	})

	first, err := p.Run(ctx, FixtureInputs())
	if err != nil {
		t.Fatalf("Run 1 failed: %v", err)
	}
	second, err := p.Run(ctx, FixtureInputs())
	if err != nil {
		t.Fatalf("Run 2 failed: %v", err)
	}

	if len(second.Records) != len(first.Records) {
		t.Errorf("Records changed from %d to %d", len(first.Records), len(second.Records))
	}
	if first.Run.DataVersion != second.Run.DataVersion {
		t.Error("Same data should keep the same data version")
	}
	stored, _ := stores.PRGI.GetAll(ctx)
	if len(stored) != len(second.Records) {
		t.Errorf("Stored snapshot: got %d records, want %d", len(stored), len(second.Records))
	}
	flags, err := stores.Anomaly.GetByRun(ctx, "run-b")
	if err != nil || len(flags) != 48 {
		t.Errorf("Flags for run-b: got %d, %v", len(flags), err)
	}
}

func TestPipeline_CacheSkipsRefetch(t *testing.T) {
	ctx := context.Background()
	in := FixtureInputs()
	src := &countingSource{TableSource: in.PDS}
	in.PDS = src

	n := 0
	p := fixedPipeline("").WithCache(time.Hour).WithRunID(func() string {
		n++
		return "run-" + string(rune('0'+n))
	})
	for i := 0; i < 2; i++ {
		if _, err := p.Run(ctx, in); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}
	if got := src.fetches.Load(); got != 1 {
		t.Errorf("PDS fetched %d times, want 1", got)
	}
}

func TestPipeline_EmptyInputs(t *testing.T) {
	empty := &ingestion.Table{Columns: []string{"State_Name", "District_Name", "Month"}}
	out, err := fixedPipeline("run-empty").Run(context.Background(), Inputs{
		PDS: ingestion.NewStaticSource("empty", empty),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Run.Status != domain.RunStatusEmpty {
		t.Errorf("Status: got %s, want %s", out.Run.Status, domain.RunStatusEmpty)
	}
	if len(out.Records) != 0 || len(out.Anomalies) != 0 || len(out.Peers) != 0 {
		t.Errorf("Expected empty sections, got %d records, %d flags, %d peers",
			len(out.Records), len(out.Anomalies), len(out.Peers))
	}
	if !strings.Contains(out.Files[reporting.ReportFilename], "No districts to rank.") {
		t.Error("Empty report should say there is nothing to rank")
	}
}

func TestPipeline_UnreadableSourceIsEmpty(t *testing.T) {
	out, err := fixedPipeline("run-missing").Run(context.Background(), Inputs{
		PDS: ingestion.NewFileSource("/nonexistent/pds.csv"),
	})
	if err != nil {
		t.Fatalf("Unreadable input should not fail the run: %v", err)
	}
	if out.Run.Status != domain.RunStatusEmpty {
		t.Errorf("Status: got %s, want %s", out.Run.Status, domain.RunStatusEmpty)
	}
}

func TestPipeline_StorageFailureRecordsFailedRun(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	stores.PRGI = failingPRGIStore{PRGIStore: stores.PRGI}

	_, err := fixedPipeline("run-fail").WithStores(stores).Run(ctx, FixtureInputs())
	if err == nil {
		t.Fatal("Expected error from failing store")
	}
	run, getErr := stores.Run.Get(ctx, "run-fail")
	if getErr != nil {
		t.Fatalf("Failed run not recorded: %v", getErr)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("Status: got %s, want %s", run.Status, domain.RunStatusFailed)
	}
}

func TestMergeSignals(t *testing.T) {
	got := mergeSignals([]domain.GrievanceSignal{
		{Month: month(1), District: "agra", Source: "pgsm", Signals: 2},
		{Month: month(1), District: "agra", Source: "pgsm", Signals: 3},
		{Month: month(1), District: "agra", Source: "cm", Signals: 1},
	})
	if len(got) != 2 || got[0].Source != "cm" || got[0].Signals != 1 || got[1].Signals != 5 {
		t.Errorf("mergeSignals: got %+v", got)
	}
}

func TestLatestSpikes(t *testing.T) {
	spikes := []domain.SpikeFlag{
		{GrievanceSignal: domain.GrievanceSignal{Month: month(2), District: "banda"}, IsSpike: true},
		{GrievanceSignal: domain.GrievanceSignal{Month: month(3), District: "etah"}, IsSpike: true},
		{GrievanceSignal: domain.GrievanceSignal{Month: month(3), District: "agra"}, IsSpike: true},
	}
	got := latestSpikes(spikes)
	if len(got) != 2 || got[0].District != "agra" || got[1].District != "etah" {
		t.Errorf("latestSpikes: got %+v", got)
	}
	if latestSpikes(nil) != nil {
		t.Error("latestSpikes(nil) should be nil")
	}
}

func TestTimedStep_RunsOnce(t *testing.T) {
	calls := 0
	fixedPipeline("run-step").timedStep("analyze", func() { calls++ })
	if calls != 1 {
		t.Errorf("timedStep ran fn %d times, want 1", calls)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/peerlens"
	"civinigrani/internal/prgi"
	"civinigrani/internal/spike"
	"civinigrani/internal/storage"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check plus integrity errors.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker reports whether stored data can support each analysis.
// A failing check does not stop the run; the affected section comes out empty.
type SufficiencyChecker struct {
	prgiStore      storage.PRGIStore
	grievanceStore storage.GrievanceStore
	minPeers       int
	spikeWindow    int
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(prgiStore storage.PRGIStore, grievanceStore storage.GrievanceStore) *SufficiencyChecker {
	return &SufficiencyChecker{
		prgiStore:      prgiStore,
		grievanceStore: grievanceStore,
		minPeers:       peerlens.DefaultOptions().MinPeers,
		spikeWindow:    spike.DefaultWindow,
	}
}

// WithMinPeers sets the PeerLens minimum used by the peer coverage check.
func (c *SufficiencyChecker) WithMinPeers(n int) *SufficiencyChecker {
	c.minPeers = n
	return c
}

// WithSpikeWindow sets the rolling window used by the grievance history check.
func (c *SufficiencyChecker) WithSpikeWindow(n int) *SufficiencyChecker {
	c.spikeWindow = n
	return c
}

// Check performs all checks.
func (c *SufficiencyChecker) Check(ctx context.Context) (*SufficiencyResult, error) {
	records, err := c.prgiStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get PRGI records: %w", err)
	}
	signals, err := c.grievanceStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get grievance signals: %w", err)
	}
	return CheckData(records, signals, c.minPeers, c.spikeWindow), nil
}

// CheckData runs the checks on in-memory data.
func CheckData(records []domain.PRGIRecord, signals []domain.GrievanceSignal, minPeers, spikeWindow int) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true, Errors: []string{}}
	add := func(check SufficiencyCheck, errs ...string) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	months := prgi.Months(records)

	// Check 1: the anomaly model needs two rows to fit
	add(SufficiencyCheck{
		Name:      "PRGI records",
		Threshold: ">= 2",
		Actual:    fmt.Sprintf("%d", len(records)),
		Pass:      len(records) >= 2,
	})

	// Check 2: trend alerts need a latest month plus three prior
	add(SufficiencyCheck{
		Name:      "Months of PRGI history",
		Threshold: fmt.Sprintf(">= %d", spike.TrendMinMonths),
		Actual:    fmt.Sprintf("%d", len(months)),
		Pass:      len(months) >= spike.TrendMinMonths,
	})

	// Check 3: PeerLens needs min_peers candidates besides the target
	latest := prgi.LatestPerDistrict(records)
	add(SufficiencyCheck{
		Name:      "Districts for peer comparison",
		Threshold: fmt.Sprintf("> %d", minPeers),
		Actual:    fmt.Sprintf("%d", len(latest)),
		Pass:      len(latest) > minPeers,
	})

	// Check 4: a full rolling baseline needs spikeWindow months
	add(checkGrievanceHistory(signals, spikeWindow))

	// Check 5: duplicate (district, month) count == 0
	dups, dupErrors := checkDuplicateKeys(records)
	add(dups, dupErrors...)

	// Check 6: calendar gaps in the PRGI month sequence == 0
	gaps, gapErrors := checkMonthGaps(months)
	add(gaps, gapErrors...)

	return result
}

func checkGrievanceHistory(signals []domain.GrievanceSignal, window int) SufficiencyCheck {
	seen := make(map[time.Time]struct{})
	for _, s := range signals {
		seen[s.Month] = struct{}{}
	}
	return SufficiencyCheck{
		Name:      "Months of grievance history",
		Threshold: fmt.Sprintf(">= %d", window),
		Actual:    fmt.Sprintf("%d", len(seen)),
		Pass:      len(seen) >= window,
	}
}

// checkDuplicateKeys: duplicate (district, month) count == 0.
// The PRGI engine aggregates per key, so any duplicate points at a storage fault.
func checkDuplicateKeys(records []domain.PRGIRecord) (SufficiencyCheck, []string) {
	seen := make(map[string]int)
	for _, r := range records {
		seen[r.Key()]++
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	duplicateCount := 0
	var errors []string
	for _, k := range keys {
		if n := seen[k]; n > 1 {
			duplicateCount++
			errors = append(errors, fmt.Sprintf("duplicate PRGI key: %s (count=%d)", k, n))
		}
	}

	return SufficiencyCheck{
		Name:      "Duplicate (district, month) count",
		Threshold: "= 0",
		Actual:    fmt.Sprintf("%d", duplicateCount),
		Pass:      duplicateCount == 0,
	}, errors
}

// checkMonthGaps walks the calendar from the first to the last month.
// Months must be sorted and first-of-month.
func checkMonthGaps(months []time.Time) (SufficiencyCheck, []string) {
	present := make(map[time.Time]struct{}, len(months))
	for _, m := range months {
		present[m] = struct{}{}
	}

	var errors []string
	if len(months) > 0 {
		last := months[len(months)-1]
		for m := months[0]; !m.After(last); m = m.AddDate(0, 1, 0) {
			if _, ok := present[m]; !ok {
				errors = append(errors, fmt.Sprintf("no PRGI data for %s", m.Format(domain.MonthLayout)))
			}
		}
	}

	return SufficiencyCheck{
		Name:      "Missing months",
		Threshold: "= 0",
		Actual:    fmt.Sprintf("%d", len(errors)),
		Pass:      len(errors) == 0,
	}, errors
}

package domain

import "time"

// Run statuses.
const (
	RunStatusSuccess = "SUCCESS"
	RunStatusEmpty   = "EMPTY"
	RunStatusFailed  = "FAILED"
)

// RunRecord is the reproducibility metadata of one pipeline run.
// Corresponds to pipeline_runs table in PostgreSQL.
type RunRecord struct {
	RunID       string // uuid
	StartedAt   time.Time
	FinishedAt  time.Time
	TargetState string
	DataVersion string // short sha256 over record keys
	Status      string // RunStatus*
	Records     int    // PRGI rows produced
	Spikes      int
	Anomalies   int // statistical + rule-based flags
}

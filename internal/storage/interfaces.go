package storage

import (
	"context"

	"civinigrani/internal/domain"
)

// PRGIStore provides access to prgi_records storage.
type PRGIStore interface {
	// InsertBulk adds multiple records atomically. Fails entire batch on any
	// duplicate (district, month).
	InsertBulk(ctx context.Context, records []domain.PRGIRecord) error

	// ReplaceAll swaps the stored table for records. The table mirrors the
	// latest derivation from the raw sources.
	ReplaceAll(ctx context.Context, records []domain.PRGIRecord) error

	// GetAll retrieves every record, ordered by month ASC, district ASC.
	GetAll(ctx context.Context) ([]domain.PRGIRecord, error)

	// GetByDistrict retrieves one district's records, ordered by month ASC.
	GetByDistrict(ctx context.Context, district string) ([]domain.PRGIRecord, error)
}

// GrievanceStore provides access to grievance_signals storage.
type GrievanceStore interface {
	// InsertBulk adds multiple signals atomically. Fails entire batch on any
	// duplicate (month, district, source).
	InsertBulk(ctx context.Context, signals []domain.GrievanceSignal) error

	// ReplaceAll swaps the stored table for signals.
	ReplaceAll(ctx context.Context, signals []domain.GrievanceSignal) error

	// GetAll retrieves every signal, ordered by month ASC, district ASC, source ASC.
	GetAll(ctx context.Context) ([]domain.GrievanceSignal, error)
}

// AnomalyStore provides access to anomaly_flags storage. Flags are scoped to a run.
type AnomalyStore interface {
	// InsertBulk adds one run's flags. Returns ErrDuplicateKey if the run already has flags.
	InsertBulk(ctx context.Context, runID string, flags []domain.AnomalyFlag) error

	// GetByRun retrieves a run's flags, ordered by month ASC, district ASC.
	GetByRun(ctx context.Context, runID string) ([]domain.AnomalyFlag, error)
}

// RunStore provides access to pipeline_runs storage.
type RunStore interface {
	// Insert adds a run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// Get retrieves a run by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListRecent retrieves up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.RunRecord, error)
}

// Stores bundles one backend's implementations. Nil fields are not supported
// by that backend and are filled from memory by the caller.
type Stores struct {
	PRGI      PRGIStore
	Grievance GrievanceStore
	Anomaly   AnomalyStore
	Run       RunStore
}

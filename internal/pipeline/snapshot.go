package pipeline

import (
	"context"
	"errors"
	"fmt"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// ErrNoSnapshot is returned when no successful run has written the stored tables.
var ErrNoSnapshot = errors.New("no successful run stored")

// SnapshotRun returns the run whose derivation the stored PRGI and grievance
// tables hold: the most recent SUCCESS run. EMPTY and FAILED runs never
// replace the tables.
func SnapshotRun(ctx context.Context, runs storage.RunStore) (*domain.RunRecord, error) {
	recent, err := runs.ListRecent(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for _, r := range recent {
		if r.Status == domain.RunStatusSuccess {
			return r, nil
		}
	}
	return nil, ErrNoSnapshot
}

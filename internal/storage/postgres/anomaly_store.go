package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// AnomalyStore implements storage.AnomalyStore using PostgreSQL.
type AnomalyStore struct {
	pool *Pool
}

// NewAnomalyStore creates a new AnomalyStore.
func NewAnomalyStore(pool *Pool) *AnomalyStore {
	return &AnomalyStore{pool: pool}
}

var _ storage.AnomalyStore = (*AnomalyStore)(nil)

// InsertBulk stores one run's flags with a single COPY.
// Returns ErrDuplicateKey if the run already has flags.
func (s *AnomalyStore) InsertBulk(ctx context.Context, runID string, flags []domain.AnomalyFlag) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(flags) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(flags); err != nil {
		return err
	}

	columns := []string{
		"run_id", "district", "month", "allocation", "distribution", "prgi",
		"is_anomaly", "anomaly_score", "anomaly_reason", "is_simple_anomaly", "simple_anomaly",
	}
	rows := make([][]any, len(flags))
	for i, f := range flags {
		rows[i] = []any{
			runID, f.District, f.Month, f.Allocation, f.Distribution, f.PRGI,
			f.IsAnomaly, f.AnomalyScore, f.AnomalyReason, f.IsSimpleAnomaly, f.SimpleAnomaly,
		}
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"anomaly_flags"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy anomaly flags: %w", err)
	}
	return nil
}

// GetByRun retrieves a run's flags, ordered by month ASC, district ASC.
func (s *AnomalyStore) GetByRun(ctx context.Context, runID string) ([]domain.AnomalyFlag, error) {
	query := `
		SELECT district, month, allocation, distribution, prgi,
		       is_anomaly, anomaly_score, anomaly_reason, is_simple_anomaly, simple_anomaly
		FROM anomaly_flags
		WHERE run_id = $1
		ORDER BY month ASC, district ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get anomaly flags by run: %w", err)
	}
	defer rows.Close()

	var flags []domain.AnomalyFlag
	for rows.Next() {
		var f domain.AnomalyFlag
		var month time.Time
		err := rows.Scan(
			&f.District, &month, &f.Allocation, &f.Distribution, &f.PRGI,
			&f.IsAnomaly, &f.AnomalyScore, &f.AnomalyReason, &f.IsSimpleAnomaly, &f.SimpleAnomaly,
		)
		if err != nil {
			return nil, fmt.Errorf("scan anomaly flag row: %w", err)
		}
		f.Month = domain.FirstOfMonth(month)
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly flag rows: %w", err)
	}
	return flags, nil
}

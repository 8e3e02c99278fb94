package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// PRGIStore implements storage.PRGIStore using PostgreSQL.
type PRGIStore struct {
	pool *Pool
}

// NewPRGIStore creates a new PRGIStore.
func NewPRGIStore(pool *Pool) *PRGIStore {
	return &PRGIStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PRGIStore = (*PRGIStore)(nil)

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *PRGIStore) InsertBulk(ctx context.Context, records []domain.PRGIRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.write(ctx, false, records)
}

// ReplaceAll deletes the stored table and writes records in one transaction.
func (s *PRGIStore) ReplaceAll(ctx context.Context, records []domain.PRGIRecord) error {
	return s.write(ctx, true, records)
}

func (s *PRGIStore) write(ctx context.Context, replace bool, records []domain.PRGIRecord) error {
	if err := storage.ValidateRecords(records); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM prgi_records`); err != nil {
			return fmt.Errorf("clear prgi records: %w", err)
		}
	}

	query := `
		INSERT INTO prgi_records (district, month, allocation, distribution, prgi)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query, r.District, r.Month, r.Allocation, r.Distribution, r.PRGI)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert prgi record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves every record, ordered by month ASC, district ASC.
func (s *PRGIStore) GetAll(ctx context.Context) ([]domain.PRGIRecord, error) {
	query := `
		SELECT district, month, allocation, distribution, prgi
		FROM prgi_records
		ORDER BY month ASC, district ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all prgi records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByDistrict retrieves one district's records, ordered by month ASC.
func (s *PRGIStore) GetByDistrict(ctx context.Context, district string) ([]domain.PRGIRecord, error) {
	query := `
		SELECT district, month, allocation, distribution, prgi
		FROM prgi_records
		WHERE district = $1
		ORDER BY month ASC
	`

	rows, err := s.pool.Query(ctx, query, district)
	if err != nil {
		return nil, fmt.Errorf("get prgi records by district: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]domain.PRGIRecord, error) {
	var records []domain.PRGIRecord

	for rows.Next() {
		var r domain.PRGIRecord
		var month time.Time
		if err := rows.Scan(&r.District, &month, &r.Allocation, &r.Distribution, &r.PRGI); err != nil {
			return nil, fmt.Errorf("scan prgi row: %w", err)
		}
		r.Month = domain.FirstOfMonth(month)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prgi rows: %w", err)
	}
	return records, nil
}

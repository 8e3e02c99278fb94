package clickhouse

import (
	"context"
	"fmt"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// PRGIStore implements storage.PRGIStore using ClickHouse.
type PRGIStore struct {
	conn *Conn
}

// NewPRGIStore creates a new PRGIStore.
func NewPRGIStore(conn *Conn) *PRGIStore {
	return &PRGIStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PRGIStore = (*PRGIStore)(nil)

// InsertBulk adds multiple records. Fails entire batch on duplicate (district, month).
// MergeTree does not enforce keys, so duplicates are checked before the batch is sent.
func (s *PRGIStore) InsertBulk(ctx context.Context, records []domain.PRGIRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(records); err != nil {
		return err
	}

	if err := checkBatchKeys(records); err != nil {
		return err
	}

	for _, r := range records {
		exists, err := s.exists(ctx, r.District, r.Month)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	return s.send(ctx, records)
}

// ReplaceAll truncates the table and writes records. ClickHouse has no
// multi-statement transactions; a failed send leaves the table empty until
// the next successful replace.
func (s *PRGIStore) ReplaceAll(ctx context.Context, records []domain.PRGIRecord) error {
	if err := storage.ValidateRecords(records); err != nil {
		return err
	}
	if err := checkBatchKeys(records); err != nil {
		return err
	}
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS prgi_records`); err != nil {
		return fmt.Errorf("truncate prgi records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	return s.send(ctx, records)
}

func (s *PRGIStore) send(ctx context.Context, records []domain.PRGIRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO prgi_records (district, month, allocation, distribution, prgi)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if err := batch.Append(r.District, r.Month, r.Allocation, r.Distribution, r.PRGI); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetAll retrieves every record, ordered by month ASC, district ASC.
func (s *PRGIStore) GetAll(ctx context.Context) ([]domain.PRGIRecord, error) {
	query := `
		SELECT district, month, allocation, distribution, prgi
		FROM prgi_records FINAL
		ORDER BY month ASC, district ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all prgi records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByDistrict retrieves one district's records, ordered by month ASC.
func (s *PRGIStore) GetByDistrict(ctx context.Context, district string) ([]domain.PRGIRecord, error) {
	query := `
		SELECT district, month, allocation, distribution, prgi
		FROM prgi_records FINAL
		WHERE district = ?
		ORDER BY month ASC
	`

	rows, err := s.conn.Query(ctx, query, district)
	if err != nil {
		return nil, fmt.Errorf("query prgi records by district: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PRGIStore) exists(ctx context.Context, district string, month time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM prgi_records
		WHERE district = ? AND month = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, district, month).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanRecords(rows chRows) ([]domain.PRGIRecord, error) {
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

package sqlite

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// PRGIStore implements storage.PRGIStore on SQLite.
type PRGIStore struct {
	d *DB
}

// NewPRGIStore creates a new PRGIStore.
func NewPRGIStore(d *DB) *PRGIStore {
	return &PRGIStore{d: d}
}

var _ storage.PRGIStore = (*PRGIStore)(nil)

// InsertBulk adds multiple records in one transaction. Fails entire batch on any duplicate.
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

	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if err := s.d.clear(ctx, tx, "prgi_records"); err != nil {
			return err
		}
	}

	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		q := s.d.sb.Insert("prgi_records").Columns("district", "month", "allocation", "distribution", "prgi")
		for _, r := range records[start:end] {
			q = q.Values(r.District, r.Month.Format(domain.MonthLayout), r.Allocation, r.Distribution, r.PRGI)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert prgi records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves every record, ordered by month ASC, district ASC.
func (s *PRGIStore) GetAll(ctx context.Context) ([]domain.PRGIRecord, error) {
	return s.query(ctx, s.selectRecords().OrderBy("month ASC", "district ASC"))
}

// GetByDistrict retrieves one district's records, ordered by month ASC.
func (s *PRGIStore) GetByDistrict(ctx context.Context, district string) ([]domain.PRGIRecord, error) {
	return s.query(ctx, s.selectRecords().Where(sq.Eq{"district": district}).OrderBy("month ASC"))
}

func (s *PRGIStore) selectRecords() sq.SelectBuilder {
	return s.d.sb.Select("district", "month", "allocation", "distribution", "prgi").From("prgi_records")
}

func (s *PRGIStore) query(ctx context.Context, b sq.SelectBuilder) ([]domain.PRGIRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prgi records: %w", err)
	}
	defer rows.Close()

	var records []domain.PRGIRecord
	for rows.Next() {
		var r domain.PRGIRecord
		var month string
		if err := rows.Scan(&r.District, &month, &r.Allocation, &r.Distribution, &r.PRGI); err != nil {
			return nil, fmt.Errorf("scan prgi row: %w", err)
		}
		if r.Month, err = parseMonth(month); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prgi rows: %w", err)
	}
	return records, nil
}

func parseMonth(s string) (time.Time, error) {
	t, err := time.Parse(domain.MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored month %q: %w", s, err)
	}
	return t, nil
}


package sqlite

import (
	"context"
	"fmt"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// GrievanceStore implements storage.GrievanceStore on SQLite.
type GrievanceStore struct {
	d *DB
}

// NewGrievanceStore creates a new GrievanceStore.
func NewGrievanceStore(d *DB) *GrievanceStore {
	return &GrievanceStore{d: d}
}

var _ storage.GrievanceStore = (*GrievanceStore)(nil)

// InsertBulk adds multiple signals in one transaction. Fails entire batch on any duplicate.
func (s *GrievanceStore) InsertBulk(ctx context.Context, signals []domain.GrievanceSignal) error {
	if len(signals) == 0 {
		return nil
	}
	return s.write(ctx, false, signals)
}

// ReplaceAll deletes the stored table and writes signals in one transaction.
func (s *GrievanceStore) ReplaceAll(ctx context.Context, signals []domain.GrievanceSignal) error {
	return s.write(ctx, true, signals)
}

func (s *GrievanceStore) write(ctx context.Context, replace bool, signals []domain.GrievanceSignal) error {
	if err := storage.ValidateRecords(signals); err != nil {
		return err
	}

	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if err := s.d.clear(ctx, tx, "grievance_signals"); err != nil {
			return err
		}
	}

	for start := 0; start < len(signals); start += insertChunk {
		end := min(start+insertChunk, len(signals))
		q := s.d.sb.Insert("grievance_signals").Columns("month", "district", "source", "signals")
		for _, g := range signals[start:end] {
			q = q.Values(g.Month.Format(domain.MonthLayout), g.District, g.Source, g.Signals)
		}
		query, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert grievance signals: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves every signal, ordered by month, district, source.
func (s *GrievanceStore) GetAll(ctx context.Context) ([]domain.GrievanceSignal, error) {
	query, args, err := s.d.sb.
		Select("month", "district", "source", "signals").
		From("grievance_signals").
		OrderBy("month ASC", "district ASC", "source ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query grievance signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.GrievanceSignal
	for rows.Next() {
		var g domain.GrievanceSignal
		var month string
		if err := rows.Scan(&month, &g.District, &g.Source, &g.Signals); err != nil {
			return nil, fmt.Errorf("scan grievance row: %w", err)
		}
		if g.Month, err = parseMonth(month); err != nil {
			return nil, err
		}
		signals = append(signals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grievance rows: %w", err)
	}
	return signals, nil
}

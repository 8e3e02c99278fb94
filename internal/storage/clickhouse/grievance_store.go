package clickhouse

import (
	"context"
	"fmt"
	"time"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// GrievanceStore implements storage.GrievanceStore using ClickHouse.
type GrievanceStore struct {
	conn *Conn
}

// NewGrievanceStore creates a new GrievanceStore.
func NewGrievanceStore(conn *Conn) *GrievanceStore {
	return &GrievanceStore{conn: conn}
}

var _ storage.GrievanceStore = (*GrievanceStore)(nil)

// InsertBulk adds multiple signals. Fails entire batch on duplicate (month, district, source).
func (s *GrievanceStore) InsertBulk(ctx context.Context, signals []domain.GrievanceSignal) error {
	if len(signals) == 0 {
		return nil
	}
	if err := storage.ValidateRecords(signals); err != nil {
		return err
	}

	if err := checkBatchKeys(signals); err != nil {
		return err
	}

	for _, g := range signals {
		var count uint64
		err := s.conn.QueryRow(ctx, `
			SELECT count(*) FROM grievance_signals
			WHERE month = ? AND district = ? AND source = ?
		`, g.Month, g.District, g.Source).Scan(&count)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	return s.send(ctx, signals)
}

// ReplaceAll truncates the table and writes signals.
func (s *GrievanceStore) ReplaceAll(ctx context.Context, signals []domain.GrievanceSignal) error {
	if err := storage.ValidateRecords(signals); err != nil {
		return err
	}
	if err := checkBatchKeys(signals); err != nil {
		return err
	}
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS grievance_signals`); err != nil {
		return fmt.Errorf("truncate grievance signals: %w", err)
	}
	if len(signals) == 0 {
		return nil
	}
	return s.send(ctx, signals)
}

func (s *GrievanceStore) send(ctx context.Context, signals []domain.GrievanceSignal) error {
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO grievance_signals (month, district, source, signals)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, g := range signals {
		if err := batch.Append(g.Month, g.District, g.Source, g.Signals); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetAll retrieves every signal, ordered by month, district, source.
func (s *GrievanceStore) GetAll(ctx context.Context) ([]domain.GrievanceSignal, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT month, district, source, signals
		FROM grievance_signals FINAL
		ORDER BY month ASC, district ASC, source ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query grievance signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.GrievanceSignal
	for rows.Next() {
		var g domain.GrievanceSignal
		var month time.Time
		if err := rows.Scan(&month, &g.District, &g.Source, &g.Signals); err != nil {
			return nil, fmt.Errorf("scan grievance row: %w", err)
		}
		g.Month = domain.FirstOfMonth(month)
		signals = append(signals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grievance rows: %w", err)
	}
	return signals, nil
}

package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"civinigrani/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded PostgreSQL files in lexical
// order, then checks every table they declare exists. Files are idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ms, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	var tables []string
	for _, m := range ms {
		if strings.TrimSpace(m.sql) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		tables = append(tables, m.tables...)
		logger.Debug("postgres migration applied", zap.String("file", m.name), zap.Strings("tables", m.tables))
	}

	for _, table := range tables {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table %s missing after migrations", table)
		}
	}

	logger.Info("postgres schema ready", zap.Int("migrations", len(ms)), zap.Strings("tables", tables))
	return nil
}

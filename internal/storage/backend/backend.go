// Package backend opens the configured storage backend and applies its
// migrations.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"civinigrani/internal/config"
	"civinigrani/internal/storage"
	chstore "civinigrani/internal/storage/clickhouse"
	"civinigrani/internal/storage/memory"
	"civinigrani/internal/storage/migrations"
	pgstore "civinigrani/internal/storage/postgres"
	"civinigrani/internal/storage/sqlite"
)

// Open connects to cfg.Backend and returns a complete set of stores.
// Tables the backend does not implement are served from memory. The
// returned cleanup closes every connection that was opened.
//
// With the postgres backend, a non-empty ClickhouseDSN moves the grievance
// series to ClickHouse.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Stores, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() {}

	switch cfg.Backend {
	case "", "memory":
		logger.Info("using in-memory storage")
		return memory.NewStores(), noop, nil

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return storage.Stores{}, noop, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return storage.Stores{}, noop, fmt.Errorf("postgres migrations: %w", err)
		}
		stores := pgstore.NewStores(pool)
		cleanup := pool.Close

		if cfg.ClickhouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
			if err != nil {
				pool.Close()
				return storage.Stores{}, noop, fmt.Errorf("clickhouse migrations: %w", err)
			}
			stores.Grievance = chstore.NewGrievanceStore(conn)
			cleanup = func() {
				conn.Close()
				pool.Close()
			}
		}
		logger.Info("using postgres storage", zap.Bool("clickhouse_grievance", cfg.ClickhouseDSN != ""))
		return memory.Fill(stores), cleanup, nil

	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
		if err != nil {
			return storage.Stores{}, noop, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Info("using clickhouse storage")
		return memory.Fill(chstore.NewStores(conn)), func() { conn.Close() }, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return storage.Stores{}, noop, err
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		return memory.Fill(sqlite.NewStores(db)), func() { db.Close() }, nil
	}

	return storage.Stores{}, noop, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Package sqlite is a single-file local backend for the PRGI and grievance
// series, for deployments without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"civinigrani/internal/storage"
)

// insertChunk bounds rows per INSERT to stay under SQLite's variable limit.
const insertChunk = 500

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS prgi_records (
    district      TEXT    NOT NULL,
    month         TEXT    NOT NULL,
    allocation    REAL    NOT NULL,
    distribution  REAL    NOT NULL,
    prgi          REAL    NOT NULL,
    PRIMARY KEY (district, month)
);
CREATE TABLE IF NOT EXISTS grievance_signals (
    month     TEXT    NOT NULL,
    district  TEXT    NOT NULL DEFAULT '',
    source    TEXT    NOT NULL DEFAULT '',
    signals   INTEGER NOT NULL,
    PRIMARY KEY (month, district, source)
);
`

// DB is an open SQLite database with the schema applied.
type DB struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// Open creates or opens the database file at path.
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// One writer; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &DB{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// NewStores returns the stores this backend implements.
func NewStores(d *DB) storage.Stores {
	return storage.Stores{
		PRGI:      NewPRGIStore(d),
		Grievance: NewGrievanceStore(d),
	}
}

// clear empties table inside tx.
func (d *DB) clear(ctx context.Context, tx *sql.Tx, table string) error {
	query, args, err := d.sb.Delete(table).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

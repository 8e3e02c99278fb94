// Package migrations creates the PRGI schema: prgi_records, pipeline_runs
// and anomaly_flags on PostgreSQL, and the prgi_records and grievance_signals
// series on ClickHouse.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

var createTable = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([a-z_][a-z0-9_]*)`)

// migration is one embedded SQL file.
type migration struct {
	name   string
	sql    string
	tables []string // tables the file creates
}

// load reads dir's .sql files in lexical order.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		m := migration{name: name, sql: string(data)}
		for _, match := range createTable.FindAllStringSubmatch(m.sql, -1) {
			m.tables = append(m.tables, strings.ToLower(match[1]))
		}
		out = append(out, m)
	}
	return out, nil
}

// Tables lists the tables dir's migrations create, in file order.
func Tables(fsys fs.FS, dir string) ([]string, error) {
	ms, err := load(fsys, dir)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, m := range ms {
		tables = append(tables, m.tables...)
	}
	return tables, nil
}

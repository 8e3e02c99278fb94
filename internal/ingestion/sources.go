package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoSourceFile is returned when no file matches any discovery pattern.
var ErrNoSourceFile = errors.New("no source file found")

// Default grievance file patterns: structured export first, legacy extraction second.
var DefaultGrievancePatterns = []string{
	"pgsm_grievance_signals_*.csv",
	"up_aggregated_matches_*.csv",
}

// TableSource provides a raw table from an external location.
type TableSource interface {
	// Fetch reads the table. Implementations must not cache.
	Fetch(ctx context.Context) (*Table, error)

	// Fingerprint identifies the current source contents for memoization.
	Fingerprint() (string, error)
}

// FileSource reads a single CSV or XLSX file.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadTable(s.Path)
}

// Fingerprint returns path, size and modification time.
func (s *FileSource) Fingerprint() (string, error) {
	return fileFingerprint(s.Path)
}

// GlobSource reads the newest file matching the first pattern that matches anything.
type GlobSource struct {
	Dir      string
	Patterns []string
}

// NewGlobSource creates a GlobSource. Patterns are tried in order.
func NewGlobSource(dir string, patterns ...string) *GlobSource {
	return &GlobSource{Dir: dir, Patterns: patterns}
}

// Fetch resolves the newest file and reads it.
func (s *GlobSource) Fetch(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := LatestFile(s.Dir, s.Patterns...)
	if err != nil {
		return nil, err
	}
	return ReadTable(path)
}

// Fingerprint fingerprints the file Fetch would read.
func (s *GlobSource) Fingerprint() (string, error) {
	path, err := LatestFile(s.Dir, s.Patterns...)
	if err != nil {
		return "", err
	}
	return fileFingerprint(path)
}

// LatestFile returns the lexically last match of the first pattern with any match.
// Export filenames carry sortable dates, so lexical order is chronological.
func LatestFile(dir string, patterns ...string) (string, error) {
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return "", fmt.Errorf("glob %s: %w", p, err)
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[len(matches)-1], nil
	}
	return "", fmt.Errorf("%w in %s", ErrNoSourceFile, dir)
}

func fileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

// StaticSource serves a fixed in-memory table. Fetch returns a clone.
type StaticSource struct {
	Name  string
	Table *Table
}

// NewStaticSource creates a StaticSource. Name feeds the fingerprint.
func NewStaticSource(name string, t *Table) *StaticSource {
	return &StaticSource{Name: name, Table: t}
}

// Fetch returns a copy of the table.
func (s *StaticSource) Fetch(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Table.Clone(), nil
}

// Fingerprint returns the name and row count.
func (s *StaticSource) Fingerprint() (string, error) {
	return fmt.Sprintf("static:%s|%d", s.Name, s.Table.Len()), nil
}

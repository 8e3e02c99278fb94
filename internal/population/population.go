// Package population loads district population figures used for peer matching.
package population

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"civinigrani/internal/normalization"
)

// ErrNoDistricts is returned when a population file parses but lists nothing.
var ErrNoDistricts = errors.New("population file lists no districts")

type fileFormat struct {
	Districts []struct {
		District   string  `json:"district"`
		Population float64 `json:"population"`
	} `json:"districts"`
}

// Table maps normalized district names to population counts.
type Table struct {
	byDistrict map[string]int64
}

// New builds a table from raw names. Names are normalized.
func New(counts map[string]int64) *Table {
	t := &Table{byDistrict: make(map[string]int64, len(counts))}
	for name, n := range counts {
		t.byDistrict[normalization.NormalizeName(name)] = n
	}
	return t
}

// Load reads a census cache file. A missing file yields an empty table and no error.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read population file: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode population file %s: %w", path, err)
	}
	if len(f.Districts) == 0 {
		return New(nil), ErrNoDistricts
	}

	t := &Table{byDistrict: make(map[string]int64, len(f.Districts))}
	for _, d := range f.Districts {
		name := normalization.NormalizeName(d.District)
		if name == "" {
			continue
		}
		t.byDistrict[name] = int64(d.Population)
	}
	return t, nil
}

// Lookup returns the population for a district name in any case.
func (t *Table) Lookup(district string) (int64, bool) {
	if t == nil {
		return 0, false
	}
	n, ok := t.byDistrict[normalization.NormalizeName(district)]
	return n, ok
}

// Len returns the number of districts.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byDistrict)
}

// Districts returns the normalized names in sorted order.
func (t *Table) Districts() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.byDistrict))
	for name := range t.byDistrict {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

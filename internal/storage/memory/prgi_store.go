package memory

import (
	"context"
	"sort"
	"sync"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// PRGIStore is an in-memory implementation of storage.PRGIStore.
type PRGIStore struct {
	mu   sync.RWMutex
	data map[string]domain.PRGIRecord // keyed by district|month
}

// NewPRGIStore creates a new in-memory PRGI store.
func NewPRGIStore() *PRGIStore {
	return &PRGIStore{
		data: make(map[string]domain.PRGIRecord),
	}
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *PRGIStore) InsertBulk(_ context.Context, records []domain.PRGIRecord) error {
	if err := storage.ValidateRecords(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(records))
	for _, r := range records {
		k := r.Key()
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, r := range records {
		s.data[r.Key()] = r
	}
	return nil
}

// ReplaceAll swaps the stored table for records. Duplicate keys in the
// batch fail it and leave the table untouched.
func (s *PRGIStore) ReplaceAll(_ context.Context, records []domain.PRGIRecord) error {
	if err := storage.ValidateRecords(records); err != nil {
		return err
	}

	next := make(map[string]domain.PRGIRecord, len(records))
	for _, r := range records {
		if _, exists := next[r.Key()]; exists {
			return storage.ErrDuplicateKey
		}
		next[r.Key()] = r
	}

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
	return nil
}

// GetAll retrieves every record, ordered by month ASC, district ASC.
func (s *PRGIStore) GetAll(_ context.Context) ([]domain.PRGIRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PRGIRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r)
	}
	sortRecords(result)
	return result, nil
}

// GetByDistrict retrieves one district's records, ordered by month ASC.
func (s *PRGIStore) GetByDistrict(_ context.Context, district string) ([]domain.PRGIRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PRGIRecord
	for _, r := range s.data {
		if r.District == district {
			result = append(result, r)
		}
	}
	sortRecords(result)
	return result, nil
}

func sortRecords(records []domain.PRGIRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Month.Equal(records[j].Month) {
			return records[i].Month.Before(records[j].Month)
		}
		return records[i].District < records[j].District
	})
}

// Verify interface compliance at compile time.
var _ storage.PRGIStore = (*PRGIStore)(nil)

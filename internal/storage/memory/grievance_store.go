package memory

import (
	"context"
	"sort"
	"sync"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// GrievanceStore is an in-memory implementation of storage.GrievanceStore.
type GrievanceStore struct {
	mu   sync.RWMutex
	data map[string]domain.GrievanceSignal
}

// NewGrievanceStore creates a new in-memory grievance store.
func NewGrievanceStore() *GrievanceStore {
	return &GrievanceStore{data: make(map[string]domain.GrievanceSignal)}
}

// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
func (s *GrievanceStore) InsertBulk(_ context.Context, signals []domain.GrievanceSignal) error {
	if err := storage.ValidateRecords(signals); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(signals))
	for _, g := range signals {
		k := g.Key()
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}
	for _, g := range signals {
		s.data[g.Key()] = g
	}
	return nil
}

// ReplaceAll swaps the stored table for signals.
func (s *GrievanceStore) ReplaceAll(_ context.Context, signals []domain.GrievanceSignal) error {
	if err := storage.ValidateRecords(signals); err != nil {
		return err
	}

	next := make(map[string]domain.GrievanceSignal, len(signals))
	for _, g := range signals {
		if _, exists := next[g.Key()]; exists {
			return storage.ErrDuplicateKey
		}
		next[g.Key()] = g
	}

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
	return nil
}

// GetAll retrieves every signal, ordered by month, district, source.
func (s *GrievanceStore) GetAll(_ context.Context) ([]domain.GrievanceSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.GrievanceSignal, 0, len(s.data))
	for _, g := range s.data {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Month.Equal(b.Month) {
			return a.Month.Before(b.Month)
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.Source < b.Source
	})
	return result, nil
}

var _ storage.GrievanceStore = (*GrievanceStore)(nil)

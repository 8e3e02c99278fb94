package memory

import (
	"context"
	"sync"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// AnomalyStore is an in-memory implementation of storage.AnomalyStore.
type AnomalyStore struct {
	mu   sync.RWMutex
	data map[string][]domain.AnomalyFlag // keyed by run_id
}

// NewAnomalyStore creates a new in-memory anomaly store.
func NewAnomalyStore() *AnomalyStore {
	return &AnomalyStore{data: make(map[string][]domain.AnomalyFlag)}
}

// InsertBulk stores one run's flags. Returns ErrDuplicateKey if the run already has flags.
func (s *AnomalyStore) InsertBulk(_ context.Context, runID string, flags []domain.AnomalyFlag) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if err := storage.ValidateRecords(flags); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := make([]domain.AnomalyFlag, len(flags))
	copy(cp, flags)
	s.data[runID] = cp
	return nil
}

// GetByRun retrieves a run's flags, ordered by month ASC, district ASC.
// An unknown run yields an empty slice.
func (s *AnomalyStore) GetByRun(_ context.Context, runID string) ([]domain.AnomalyFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flags := s.data[runID]
	result := make([]domain.AnomalyFlag, len(flags))
	copy(result, flags)
	sortFlags(result)
	return result, nil
}

var _ storage.AnomalyStore = (*AnomalyStore)(nil)

// Package memory provides in-process implementations of the storage interfaces,
// used by tests and by the default "memory" backend.
package memory

import (
	"sort"

	"civinigrani/internal/domain"
	"civinigrani/internal/storage"
)

// NewStores returns a fresh set of in-memory stores.
func NewStores() storage.Stores {
	return storage.Stores{
		PRGI:      NewPRGIStore(),
		Grievance: NewGrievanceStore(),
		Anomaly:   NewAnomalyStore(),
		Run:       NewRunStore(),
	}
}

// Fill sets every nil store in s to an in-memory one.
func Fill(s storage.Stores) storage.Stores {
	if s.PRGI == nil {
		s.PRGI = NewPRGIStore()
	}
	if s.Grievance == nil {
		s.Grievance = NewGrievanceStore()
	}
	if s.Anomaly == nil {
		s.Anomaly = NewAnomalyStore()
	}
	if s.Run == nil {
		s.Run = NewRunStore()
	}
	return s
}

func sortFlags(flags []domain.AnomalyFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		if !flags[i].Month.Equal(flags[j].Month) {
			return flags[i].Month.Before(flags[j].Month)
		}
		return flags[i].District < flags[j].District
	})
}

package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when InsertBulk collides with stored keys.
	// Rewriting a derived table goes through ReplaceAll.
	ErrDuplicateKey = errors.New("duplicate key: use ReplaceAll to rewrite stored rows")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidateRecords rejects records without a district or month.
func ValidateRecords[T interface{ Valid() bool }](items []T) error {
	for _, it := range items {
		if !it.Valid() {
			return ErrInvalidInput
		}
	}
	return nil
}

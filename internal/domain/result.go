package domain

import "fmt"

// Status discriminates a Result.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusError
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrorKind classifies a failed computation.
type ErrorKind string

const (
	KindInput    ErrorKind = "INPUT"    // unreadable source
	KindInternal ErrorKind = "INTERNAL" // unexpected failure inside a compute pass
)

// Result is Ok(value) | Empty(reason) | Error(kind, err).
// Core components return Empty for data-shape problems so callers can
// tell "no data" apart from a real failure.
type Result[T any] struct {
	Status Status
	Value  T
	Reason string // why the result is empty
	Kind   ErrorKind
	Err    error
}

// OK wraps a value.
func OK[T any](v T) Result[T] {
	return Result[T]{Status: StatusOK, Value: v}
}

// Empty returns a no-data result with a loggable reason.
func Empty[T any](reason string) Result[T] {
	return Result[T]{Status: StatusEmpty, Reason: reason}
}

// Failed returns an error result.
func Failed[T any](kind ErrorKind, err error) Result[T] {
	return Result[T]{Status: StatusError, Kind: kind, Err: err}
}

// IsOK reports whether the result carries a value.
func (r Result[T]) IsOK() bool { return r.Status == StatusOK }

// IsEmpty reports whether the result is a no-data result.
func (r Result[T]) IsEmpty() bool { return r.Status == StatusEmpty }

// Describe returns a one-line human summary of a non-OK result.
func (r Result[T]) Describe() string {
	switch r.Status {
	case StatusEmpty:
		return "no data available: " + r.Reason
	case StatusError:
		return fmt.Sprintf("%s error: %v", r.Kind, r.Err)
	default:
		return "ok"
	}
}

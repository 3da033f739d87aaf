package social

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrPlatformDisabled means the platform has no configured fetcher
	// (e.g. no YouTube API key). Sweeps skip such accounts silently.
	ErrPlatformDisabled = errors.New("platform disabled")

	ErrNotFound = errors.New("account not found")
	ErrParse    = errors.New("profile not parsable")
	ErrProvider = errors.New("provider error")
	ErrTimeout  = errors.New("network timeout")
)

// FetchError is a per-account fetch failure. Kind is one of ErrNotFound,
// ErrParse, ErrProvider or ErrTimeout; both Kind and Err match errors.Is.
type FetchError struct {
	Platform Platform
	Kind     error
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Platform, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Platform, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewFetchError(p Platform, kind, err error) *FetchError {
	return &FetchError{Platform: p, Kind: kind, Err: err}
}

// NetworkError classifies a transport failure as ErrTimeout or ErrProvider.
func NetworkError(p Platform, err error) *FetchError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return NewFetchError(p, ErrTimeout, err)
	}
	return NewFetchError(p, ErrProvider, err)
}

// ValidationError is a user-facing input problem; nothing was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// PersistenceError wraps a storage load/save failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

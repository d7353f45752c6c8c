package offer

import (
	"errors"
	"fmt"
)

var (
	// ErrOfferNotFound is returned when no offer row exists for the provided identifier.
	ErrOfferNotFound = errors.New("offer: not found")
	// ErrAlreadyResolved signals an attempted transition on a terminal offer.
	// It indicates a caller bug (e.g. double-submission) and is surfaced, not retried.
	ErrAlreadyResolved = errors.New("offer: already resolved")
	// ErrVersionConflict signals the optimistic-concurrency check failed; the
	// caller decides whether to reload and retry.
	ErrVersionConflict = errors.New("offer: version conflict")
	// ErrInvalidTransition signals the requested move is not on the status graph.
	ErrInvalidTransition = errors.New("offer: invalid transition")
	// ErrStoreUnavailable marks persistence-layer failures; a sweep run aborts
	// for the remaining offers when it sees one.
	ErrStoreUnavailable = errors.New("offer: store unavailable")
)

// StoreError wraps a persistence failure so callers can match it against
// ErrStoreUnavailable while keeping the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("offer: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

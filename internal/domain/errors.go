package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline. Adapters wrap driver errors
// with the matching *Unavailable sentinel so callers can branch with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrDuplicate        = errors.New("duplicate order")
	ErrNotFound         = errors.New("order not found")
	ErrMalformedEntry   = errors.New("malformed queue entry")
	ErrQueueUnavailable = errors.New("queue unavailable")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateError is returned by admission when the order is already known,
// either to the cache or to the store.
type DuplicateError struct {
	OrderID  string
	Status   OrderStatus
	Snapshot *CacheEntry // set when the duplicate was detected in the cache
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("order %s already exists with status %s", e.OrderID, e.Status)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// Reason returns the machine-readable rejection reason for err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQueueUnavailable):
		return "queue_unavailable"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrCacheUnavailable):
		return "cache_unavailable"
	default:
		return "internal"
	}
}

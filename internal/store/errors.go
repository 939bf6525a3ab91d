package store

import (
	"errors"
	"fmt"

	"github.com/kshoda-lgtm/vexum-management/pkg/models"
)

// Sentinels for errors.Is. Every typed error below unwraps to one of them.
var (
	ErrPersistence   = errors.New("persistence failure")
	ErrQuotaExceeded = errors.New("backend quota exceeded")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
)

// PersistenceError is a failed backend read or write. The operation was aborted and
// in-memory state is unchanged. Transient failures may be retried.
type PersistenceError struct {
	Op        string
	Kind      models.Kind
	Transient bool
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return unwrapPair(ErrPersistence, e.Err) }

// QuotaExceededError reports a backend plan or storage limit. Blocked is set when the
// write was refused locally because the store is already in quota-exceeded mode.
type QuotaExceededError struct {
	Kind    models.Kind
	Blocked bool
	Err     error
}

func (e *QuotaExceededError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("write to %s blocked: backend quota exceeded, only local state is current", e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend quota exceeded writing %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend quota exceeded writing %s", e.Kind)
}

func (e *QuotaExceededError) Unwrap() []error { return unwrapPair(ErrQuotaExceeded, e.Err) }

// NotFoundError reports an id absent from its collection.
type NotFoundError struct {
	Kind models.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError rejects input before any mutation is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err is a persistence failure worth retrying.
func IsTransient(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Transient
}

func unwrapPair(sentinel, err error) []error {
	if err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, err}
}

package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrStopped    = errors.New("scheduler stopped")
	ErrEmptyText  = errors.New("reminder text is empty")
	ErrNotFuture  = errors.New("fire moment is not in the future")
	ErrMissingAt  = errors.New("fire moment is required")
	ErrEmptyJobID = errors.New("job id is empty")
)

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError wraps a failed store operation. Callers should show a generic
// failure; the detail is for logs.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError is a failed send during fire. It is logged and published,
// never returned to a caller.
type DeliveryError struct {
	JobID      string
	ExternalID int64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %d: %v", e.JobID, e.ExternalID, e.Err)
}
func (e *DeliveryError) Unwrap() error { return e.Err }

// RestoreRowError is one unusable row met during Restore.
type RestoreRowError struct {
	JobID string
	Err   error
}

func (e *RestoreRowError) Error() string { return fmt.Sprintf("restore %s: %v", e.JobID, e.Err) }
func (e *RestoreRowError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsStorage(err error) bool {
	var e *StorageError
	return errors.As(err, &e)
}

func IsDelivery(err error) bool {
	var e *DeliveryError
	return errors.As(err, &e)
}

func IsRestoreRow(err error) bool {
	var e *RestoreRowError
	return errors.As(err, &e)
}

package catalog

import (
	"errors"
	"fmt"
)

// NotFoundError reports a referenced SKU, product, variant or image that
// does not exist. Expected and user-correctable.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// ConflictError reports a unique-constraint race on create. Retryable by
// re-resolving with the same inputs.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConflictError) Unwrap() error { return e.Err }

// MergeFailedError wraps any unexpected failure during the merge workflow.
// The transaction is rolled back before this surfaces; no partial state
// remains.
type MergeFailedError struct {
	Err error
}

func (e *MergeFailedError) Error() string {
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeFailedError) Unwrap() error { return e.Err }

// TransientStoreError reports a store-level failure (connection, timeout)
// outside a merge. The whole operation is transactional, so callers may
// retry with the same inputs.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsMergeFailed(err error) bool {
	var target *MergeFailedError
	return errors.As(err, &target)
}

func storeError(op string, err error) error {
	return &TransientStoreError{Op: op, Err: err}
}

package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPeriodReadOnly indicates a write was attempted against a past period.
	ErrPeriodReadOnly = errors.New("period is read-only")
	// ErrLockHeld indicates another close operation holds the lock.
	ErrLockHeld = errors.New("operation already in progress")
)

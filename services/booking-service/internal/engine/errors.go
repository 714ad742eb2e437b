package engine

import "errors"

// Sentinel errors returned by engine operations. Transports map these to
// status codes; storage implementations translate their native failures
// into this set before returning.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrOverlapConflict = errors.New("availability window overlaps an existing window")
	ErrNoAvailability  = errors.New("requested range is not inside any availability window")
	ErrSlotConflict    = errors.New("requested range overlaps an existing booking")
	ErrTimeout         = errors.New("timed out waiting for conflict check")
	ErrStorage         = errors.New("storage failure")
)

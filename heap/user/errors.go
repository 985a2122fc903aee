package user

import "errors"

var (
	// ErrResizeRejected wraps a failed resize call. Alloc logs it and
	// returns 0; it never reaches the caller.
	ErrResizeRejected = errors.New("user: heap resize rejected")

	// ErrRelocated indicates the resize call returned a base different from
	// the current bottom. The heap never moves, so the resize is discarded.
	ErrRelocated = errors.New("user: heap base moved")
)

package frame

import "errors"

var (
	// ErrOutOfMemory indicates every physical frame is in use.
	ErrOutOfMemory = errors.New("frame: out of physical memory")

	// ErrBadFrame indicates a frame number outside the pool.
	ErrBadFrame = errors.New("frame: bad frame number")

	// ErrNotAllocated indicates a free of a frame that is not in use.
	ErrNotAllocated = errors.New("frame: frame not allocated")
)

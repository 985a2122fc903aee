package core

import "errors"

var (
	// ErrNoFit indicates that no hole large enough was found.
	ErrNoFit = errors.New("core: no hole large enough")

	// ErrZeroSize indicates a zero-sized request.
	ErrZeroSize = errors.New("core: zero-sized allocation")

	// ErrBadAlign indicates an alignment that is not a power of two.
	ErrBadAlign = errors.New("core: alignment must be a power of two")
)

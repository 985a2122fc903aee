package heap

import (
	"github.com/joshuapare/heapkit/heap/fatal"
)

// Allocator is the allocation contract of a process.
type Allocator interface {
	// Alloc returns the address of size bytes aligned to align, or 0 when
	// memory cannot be produced.
	Alloc(size, align uintptr) uintptr

	// Free releases a block. ptr, size and align must match a live
	// allocation exactly; a mismatch is undefined behaviour.
	Free(ptr, size, align uintptr)
}

// MustAlloc allocates from a and treats failure as fatal.
func MustAlloc(a Allocator, size, align uintptr) uintptr {
	p := a.Alloc(size, align)
	if p == 0 {
		fatal.Terminate(&fatal.Error{Kind: fatal.OutOfMemory, Op: "alloc", Size: size})
	}
	return p
}

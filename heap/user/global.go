package user

import (
	"sync"

	"github.com/joshuapare/heapkit/svc"
)

var global = sync.OnceValue(func() *Allocator {
	return New(svc.DefaultClient(), nil)
})

// Global returns the process-wide userspace heap, resizing through
// svc.DefaultClient().
func Global() *Allocator {
	return global()
}

// Alloc allocates from the global userspace heap.
func Alloc(size, align uintptr) uintptr {
	return global().Alloc(size, align)
}

// Free returns a block to the global userspace heap.
func Free(ptr, size, align uintptr) {
	global().Free(ptr, size, align)
}

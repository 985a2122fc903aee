package kernel

import (
	"sync"

	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
)

var global = sync.OnceValue(func() *Allocator {
	return New(vm.Default(), frame.Default(), nil)
})

// Global returns the process-wide kernel heap over the default address
// space and frame pool.
func Global() *Allocator {
	return global()
}

// Alloc allocates from the global kernel heap.
func Alloc(size, align uintptr) uintptr {
	return global().Alloc(size, align)
}

// Free returns a block to the global kernel heap.
func Free(ptr, size, align uintptr) {
	global().Free(ptr, size, align)
}

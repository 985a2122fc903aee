package frame

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// Frame identifies one page of physical memory.
type Frame struct {
	Number uint32
}

// Addr returns the physical address of the frame.
func (f Frame) Addr() uintptr {
	return uintptr(f.Number) * format.PageSize
}

func (f Frame) String() string {
	return fmt.Sprintf("frame#%d@%#x", f.Number, f.Addr())
}

// Allocator hands out single physical frames.
type Allocator interface {
	// AllocateFrame returns an unused frame, or ErrOutOfMemory.
	AllocateFrame() (Frame, error)

	// FreeFrame returns a frame to the allocator.
	FreeFrame(f Frame) error
}

// Store is the physical memory behind a pool.
type Store interface {
	// Frame returns the page-sized contents of f.
	Frame(f Frame) []byte

	// Frames returns the number of frames the store holds.
	Frames() int

	// Close releases the store.
	Close() error
}

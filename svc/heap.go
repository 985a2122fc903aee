// Package svc is the kernel side of the privileged heap resize call.
//
// A ProcessHeap owns the heap region of one process: it reserves the
// process's maximum heap once, so the base never moves, and maps or unmaps
// frames as the process asks for a new size. A Gate serves resize requests
// from a kernel goroutine, and a Client is the process's end of the call:
// SetHeapSize blocks until the kernel answers.
package svc

import (
	"sync"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
)

// HeapConfig bounds a process heap.
type HeapConfig struct {
	// Limit is the largest heap the process may request. Zero means
	// format.DefaultProcessHeapLimit. Rounded up to the growth unit.
	Limit uintptr

	// Flags are the protections of heap pages. Zero means Writable|User.
	Flags vm.Flags
}

// zeroer is implemented by frame allocators that can clear a frame.
type zeroer interface {
	Zero(f frame.Frame)
}

// ProcessHeap is the kernel's view of one process heap.
type ProcessHeap struct {
	space  vm.AddressSpace
	frames frame.Allocator
	limit  uintptr
	flags  vm.Flags

	mu     sync.Mutex
	region addr.Range    // reserved on first call
	pages  []frame.Frame // frames backing [base, base+size), one per page
}

// NewProcessHeap creates a heap of size zero. Nothing is reserved until the
// first SetHeapSize.
func NewProcessHeap(space vm.AddressSpace, frames frame.Allocator, cfg *HeapConfig) *ProcessHeap {
	h := &ProcessHeap{
		space:  space,
		frames: frames,
		limit:  format.DefaultProcessHeapLimit,
		flags:  vm.Writable | vm.User,
	}
	if cfg != nil {
		if cfg.Limit != 0 {
			h.limit = max(format.AlignGrowthUnit(cfg.Limit), format.UserHeapGrowthUnit)
		}
		if cfg.Flags != 0 {
			h.flags = cfg.Flags
		}
	}
	return h
}

// SetHeapSize resizes the heap to total bytes and returns its base.
// total must be a multiple of the growth unit and at most the limit.
// Growing maps zeroed frames; shrinking unmaps and releases them.
func (h *ProcessHeap) SetHeapSize(total uintptr) (uintptr, error) {
	if total&format.UserHeapGrowthMask != 0 {
		return 0, kernelError(InvalidSize, "%#x is not a multiple of %#x", total, format.UserHeapGrowthUnit)
	}
	if total > h.limit {
		return 0, kernelError(MemoryFull, "%#x exceeds the heap limit %#x", total, h.limit)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.region.Empty() {
		if err := h.reserve(); err != nil {
			return 0, err
		}
	}

	size := h.size()
	switch {
	case total > size:
		if err := h.grow(size, total); err != nil {
			return 0, err
		}
	case total < size:
		if err := h.shrink(total, size); err != nil {
			return 0, err
		}
	}
	logger.Debug("heap resized", "base", h.region.Start, "from", size, "to", total)
	return h.region.Start, nil
}

func (h *ProcessHeap) reserve() error {
	r, err := h.space.FindVirtualSpace(h.limit)
	if err != nil {
		return &KernelError{Code: MemoryFull, Err: err}
	}
	if err := h.space.Guard(r.Start, r.Len); err != nil {
		return &KernelError{Code: MemoryFull, Err: err}
	}
	h.region = r
	return nil
}

func (h *ProcessHeap) size() uintptr {
	return uintptr(len(h.pages)) * format.PageSize
}

// grow maps [from, to) relative to the base. On failure every page mapped
// by this call is released again.
func (h *ProcessHeap) grow(from, to uintptr) error {
	base := h.region.Start
	for off := from; off < to; off += format.PageSize {
		f, err := h.frames.AllocateFrame()
		if err != nil {
			h.rollback(from)
			return &KernelError{Code: MemoryFull, Err: err}
		}
		if z, ok := h.frames.(zeroer); ok {
			z.Zero(f)
		}
		va := base + off
		if err := h.space.Unmap(va, format.PageSize); err == nil {
			err = h.space.MapFrame(f, va, h.flags)
		}
		if err != nil {
			_ = h.frames.FreeFrame(f)
			h.rollback(from)
			return &KernelError{Code: MemoryFull, Err: err}
		}
		h.pages = append(h.pages, f)
	}
	return nil
}

func (h *ProcessHeap) rollback(size uintptr) {
	if err := h.shrink(size, h.size()); err != nil {
		logger.Warn("heap rollback failed", "err", err)
	}
}

// shrink releases [to, from) relative to the base and guards it again.
func (h *ProcessHeap) shrink(to, from uintptr) error {
	if to >= from {
		return nil
	}
	if err := h.space.Guard(h.region.Start+to, from-to); err != nil {
		return &KernelError{Code: MemoryFull, Err: err}
	}
	keep := int(to / format.PageSize)
	for _, f := range h.pages[keep:] {
		if err := h.frames.FreeFrame(f); err != nil {
			logger.Warn("releasing heap frame failed", "frame", f.String(), "err", err)
		}
	}
	h.pages = h.pages[:keep]
	return nil
}

// Base returns the heap base, 0 before the first resize.
func (h *ProcessHeap) Base() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.region.Start
}

// Size returns the mapped heap size.
func (h *ProcessHeap) Size() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size()
}

// Limit returns the largest size SetHeapSize accepts.
func (h *ProcessHeap) Limit() uintptr {
	return h.limit
}

// Memory gives the kernel checked access to the process heap.
func (h *ProcessHeap) Memory() vm.Memory {
	return h.space
}

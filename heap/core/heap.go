// Package core implements the first-fit heap primitive both allocators are
// built on.
//
// A Heap manages the byte range [Bottom, Top). It never touches that memory:
// the free list is kept in Go memory as a sorted slice of holes, so a heap
// can describe memory that is not even accessible yet, and bookkeeping never
// allocates from the range it manages.
//
// Heap is not thread-safe. Allocators wrap it in their own lock.
package core

import (
	"fmt"
	"sort"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
)

// Heap is a first-fit free list over one contiguous range.
type Heap struct {
	bottom uintptr
	size   uintptr
	used   uintptr
	holes  []addr.Range // sorted, disjoint, never adjacent
}

// Empty returns a heap with no backing range. Bottom is 0 until Init.
func Empty() Heap {
	return Heap{}
}

// New returns a heap initialised over [bottom, bottom+size).
func New(bottom, size uintptr) Heap {
	var h Heap
	h.Init(bottom, size)
	return h
}

// Init resets the heap to manage [bottom, bottom+size) as one free hole.
// Any previous state is discarded.
func (h *Heap) Init(bottom, size uintptr) {
	h.bottom = bottom
	h.size = size
	h.used = 0
	h.holes = h.holes[:0]
	if size > 0 {
		h.holes = append(h.holes, addr.New(bottom, size))
	}
}

// Bottom returns the first managed address. 0 means the heap was never
// initialised.
func (h *Heap) Bottom() uintptr { return h.bottom }

// Top returns the exclusive end of the managed range.
func (h *Heap) Top() uintptr { return h.bottom + h.size }

// Size returns the number of managed bytes.
func (h *Heap) Size() uintptr { return h.size }

// Used returns the bytes currently handed out, after block rounding.
func (h *Heap) Used() uintptr { return h.used }

// Free returns the bytes currently in holes.
func (h *Heap) Free() uintptr { return h.size - h.used }

// Holes returns a copy of the free list.
func (h *Heap) Holes() []addr.Range {
	out := make([]addr.Range, len(h.holes))
	copy(out, h.holes)
	return out
}

// BlockSize returns the bytes reserved for a request of size bytes. Alloc
// and Deallocate both use it, so the caller's (size, align) pair identifies
// the block.
func BlockSize(size uintptr) uintptr {
	return format.AlignBlock(size)
}

// AllocateFirstFit returns the lowest address of the first hole that can
// hold size bytes aligned to align.
func (h *Heap) AllocateFirstFit(size, align uintptr) (uintptr, error) {
	if size == 0 {
		return 0, ErrZeroSize
	}
	if !format.IsPowerOfTwo(align) {
		return 0, fmt.Errorf("%w: %d", ErrBadAlign, align)
	}
	if size > h.size {
		return 0, ErrNoFit
	}
	need := BlockSize(size)
	align = max(align, format.BlockAlignment)

	for i, hole := range h.holes {
		start := format.AlignUp(hole.Start, align)
		if start < hole.Start {
			continue // wrapped
		}
		end, ok := buf.AddOverflowSafe(start, need)
		if !ok || end > hole.End() {
			continue
		}
		h.carve(i, addr.Span(start, end))
		h.used += need
		return start, nil
	}
	return 0, ErrNoFit
}

// carve removes block from hole i, keeping the front padding and the tail
// as holes.
func (h *Heap) carve(i int, block addr.Range) {
	hole := h.holes[i]
	front := addr.Span(hole.Start, block.Start)
	back := addr.Span(block.End(), hole.End())

	switch {
	case front.Empty() && back.Empty():
		h.holes = append(h.holes[:i], h.holes[i+1:]...)
	case front.Empty():
		h.holes[i] = back
	case back.Empty():
		h.holes[i] = front
	default:
		h.holes[i] = front
		h.holes = append(h.holes, addr.Range{})
		copy(h.holes[i+2:], h.holes[i+1:])
		h.holes[i+1] = back
	}
}

// Deallocate returns the block at ptr to the free list, merging it with
// neighbouring holes. The (ptr, size, align) triple must match a live
// allocation; this is not checked.
func (h *Heap) Deallocate(ptr, size, _ uintptr) {
	block := addr.New(ptr, BlockSize(size))
	h.used -= block.Len
	h.insert(block)
}

// insert adds r to the free list, merging adjacent holes.
func (h *Heap) insert(r addr.Range) {
	i := sort.Search(len(h.holes), func(i int) bool {
		return h.holes[i].Start >= r.Start
	})

	mergePrev := i > 0 && h.holes[i-1].End() == r.Start
	mergeNext := i < len(h.holes) && r.End() == h.holes[i].Start

	switch {
	case mergePrev && mergeNext:
		h.holes[i-1].Len += r.Len + h.holes[i].Len
		h.holes = append(h.holes[:i], h.holes[i+1:]...)
	case mergePrev:
		h.holes[i-1].Len += r.Len
	case mergeNext:
		h.holes[i].Start = r.Start
		h.holes[i].Len += r.Len
	default:
		h.holes = append(h.holes, addr.Range{})
		copy(h.holes[i+1:], h.holes[i:])
		h.holes[i] = r
	}
}

// Extend grows the managed range by `by` bytes at the top. The new bytes
// become free immediately.
func (h *Heap) Extend(by uintptr) {
	if by == 0 {
		return
	}
	grown := addr.New(h.Top(), by)
	h.size += by
	h.insert(grown)
}

func (h *Heap) String() string {
	return fmt.Sprintf("heap[%#x, %#x) used=%d holes=%d", h.bottom, h.Top(), h.used, len(h.holes))
}

// Growth returns how many bytes must be appended at the top of a heap so a
// request that just failed is guaranteed to fit in the new bytes alone. The
// top is assumed page-aligned, so only alignments above a page need slack.
// ok is false if the result overflows.
func Growth(size, align uintptr) (uintptr, bool) {
	if size > ^uintptr(0)-format.PageSize {
		return 0, false
	}
	need := BlockSize(size)
	if align > format.PageSize {
		return buf.AddOverflowSafe(need, align)
	}
	return need, true
}

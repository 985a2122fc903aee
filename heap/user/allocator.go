// Package user implements the global heap allocator of an unprivileged
// process.
//
// The process cannot map memory itself. The heap starts empty with no base
// address; when the free list runs dry the allocator asks the kernel to
// resize the heap through a Resizer and grows over whatever the kernel
// mapped. The first resize decides the base address, and later resizes
// must keep it.
//
// The heap lock is held across the resize call. Other allocations on the
// same heap wait until the kernel answers.
package user

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/core"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
)

// Resizer is the privileged call that sets the size of the process heap.
// It returns the heap's base address, which must be the same on every call.
type Resizer interface {
	SetHeapSize(total uintptr) (base uintptr, err error)
}

// Config tunes a userspace allocator. A nil *Config uses the defaults.
type Config struct {
	// GrowthUnit is the granularity of resize requests. Zero means
	// format.UserHeapGrowthUnit. Must be a power of two.
	GrowthUnit uintptr

	// Logger receives ALLOC/FREE/RESIZE records. Nil means logger.L.
	Logger *slog.Logger
}

// Allocator is the userspace heap.
type Allocator struct {
	resizer Resizer
	unit    uintptr
	log     *slog.Logger

	mu    sync.Mutex
	heap  core.Heap
	stats heap.Stats
}

var _ heap.Allocator = (*Allocator)(nil)

// New creates an empty heap that grows through r.
func New(r Resizer, cfg *Config) *Allocator {
	a := &Allocator{
		resizer: r,
		unit:    format.UserHeapGrowthUnit,
		log:     logger.L,
		heap:    core.Empty(),
	}
	if cfg != nil {
		if cfg.GrowthUnit != 0 {
			if !format.IsPowerOfTwo(cfg.GrowthUnit) {
				panic(fmt.Sprintf("user: growth unit %#x is not a power of two", cfg.GrowthUnit))
			}
			a.unit = cfg.GrowthUnit
		}
		a.log = logger.Or(cfg.Logger)
	}
	return a
}

// Alloc returns size bytes aligned to align. When the heap is full it
// resizes once and retries once; 0 means both failed.
func (a *Allocator) Alloc(size, align uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.AllocCalls++
	p, err := a.heap.AllocateFirstFit(size, align)
	if err == nil {
		a.stats.AllocFastPath++
		a.allocated(p, size)
		return p
	}
	if !errors.Is(err, core.ErrNoFit) {
		a.log.Debug("ALLOC rejected", "size", size, "align", align, "err", err)
		a.stats.AllocFailures++
		return 0
	}

	if err := a.grow(size, align); err != nil {
		a.log.Warn("heap growth failed", "size", size, "align", align, "err", err)
		a.stats.AllocFailures++
		return 0
	}

	p, err = a.heap.AllocateFirstFit(size, align)
	if err != nil {
		a.log.Debug("ALLOC failed after resize", "size", size, "align", align, "err", err)
		a.stats.AllocFailures++
		return 0
	}
	a.stats.AllocSlowPath++
	a.allocated(p, size)
	return p
}

func (a *Allocator) allocated(p, size uintptr) {
	a.stats.BytesAllocated += int64(core.BlockSize(size))
	a.log.Debug("ALLOC", "addr", fmt.Sprintf("%#x", p), "size", size)
}

// grow resizes the heap so a request of (size, align) fits in the new
// region. The caller holds mu.
func (a *Allocator) grow(size, align uintptr) error {
	need, ok := core.Growth(size, align)
	var total uintptr
	if ok {
		need, ok = buf.AddOverflowSafe(need, a.unit-1)
		need &^= a.unit - 1
	}
	if ok {
		total, ok = buf.AddOverflowSafe(a.heap.Size(), need)
	}
	if !ok {
		return fmt.Errorf("%w: request of %#x bytes overflows", ErrResizeRejected, size)
	}

	a.log.Debug("RESIZE", "from", a.heap.Size(), "to", total)
	base, err := a.resizer.SetHeapSize(total)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResizeRejected, err)
	}

	if a.heap.Bottom() == 0 {
		a.heap.Init(base, total)
	} else {
		if base != a.heap.Bottom() {
			// The kernel has already grown to total; hand the growth back.
			if _, err := a.resizer.SetHeapSize(a.heap.Size()); err != nil {
				a.log.Warn("heap size diverged from kernel",
					"kernel", total, "heap", a.heap.Size(), "err", err)
			}
			return fmt.Errorf("%w: %#x, want %#x", ErrRelocated, base, a.heap.Bottom())
		}
		a.heap.Extend(total - a.heap.Size())
	}
	a.stats.GrowCalls++
	a.stats.GrowBytes += int64(need)
	return nil
}

// Free returns a block to the heap.
func (a *Allocator) Free(ptr, size, align uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.log.Debug("FREE", "addr", fmt.Sprintf("%#x", ptr), "size", size)
	a.heap.Deallocate(ptr, size, align)
	a.stats.FreeCalls++
	a.stats.BytesFreed += int64(core.BlockSize(size))
}

// Stats returns a snapshot of the allocator statistics.
func (a *Allocator) Stats() heap.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Bottom, s.Top, s.Used = a.heap.Bottom(), a.heap.Top(), a.heap.Used()
	return s
}

// Size returns the current heap size, 0 before the first resize.
func (a *Allocator) Size() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heap.Size()
}

package kernel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/heap/core"
	"github.com/joshuapare/heapkit/heap/fatal"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
)

// Allocator is the kernel heap. The zero value is not usable; call New.
type Allocator struct {
	space  vm.AddressSpace
	frames frame.Allocator
	cfg    Config
	log    *slog.Logger

	once    sync.Once
	initErr *fatal.Error

	// growMu serialises expansions. Lock order: growMu, then mu. mu is never
	// held while calling the frame allocator or the address space.
	growMu sync.Mutex

	mu          sync.Mutex
	heap        core.Heap
	reservation addr.Range
	stats       heap.Stats

	// Test hook: called after each committed expansion (nil in production)
	onGrow func(grown addr.Range)
}

var _ heap.Allocator = (*Allocator)(nil)

// New creates an uninitialised kernel heap. Nothing is reserved or mapped
// until the first Alloc.
func New(space vm.AddressSpace, frames frame.Allocator, cfg *Config) *Allocator {
	c := cfg.normalized()
	return &Allocator{
		space:  space,
		frames: frames,
		cfg:    c,
		log:    logger.Or(c.Logger),
	}
}

// bootstrap reserves the heap range, maps its first page and guards the rest.
func (a *Allocator) bootstrap() {
	reserved := a.cfg.ReservedSize

	r, err := a.space.FindVirtualSpace(reserved)
	if err != nil {
		a.initErr = &fatal.Error{Kind: fatal.InitFailed, Op: "init", Size: reserved, Err: err}
		return
	}
	f, err := a.frames.AllocateFrame()
	if err != nil {
		a.initErr = &fatal.Error{Kind: fatal.InitFailed, Op: "init", Addr: r.Start, Err: err}
		return
	}
	if err := a.space.MapFrame(f, r.Start, vm.Writable); err != nil {
		a.initErr = &fatal.Error{Kind: fatal.InitFailed, Op: "init", Addr: r.Start, Err: err}
		return
	}
	if reserved > format.PageSize {
		if err := a.space.Guard(r.Start+format.PageSize, reserved-format.PageSize); err != nil {
			a.initErr = &fatal.Error{Kind: fatal.InitFailed, Op: "init", Addr: r.Start + format.PageSize, Err: err}
			return
		}
	}

	a.log.Info("reserving heap pages",
		"pages", format.Pages(reserved)-1,
		"at", addrAttr(r.Start+format.PageSize))

	a.mu.Lock()
	a.reservation = r
	a.heap.Init(r.Start, format.PageSize)
	a.mu.Unlock()
}

// ready runs the one-time initialisation and reports whether the heap is usable.
func (a *Allocator) ready() bool {
	a.once.Do(a.bootstrap)
	if a.initErr != nil {
		a.fail(a.initErr)
		return false
	}
	return true
}

// Alloc returns size bytes aligned to align, growing the heap once if the
// free list cannot satisfy the request. It returns 0 when the retry after
// growing still fails.
func (a *Allocator) Alloc(size, align uintptr) uintptr {
	if !a.ready() {
		return 0
	}

	a.mu.Lock()
	a.stats.AllocCalls++
	p, err := a.allocateLocked(size, align)
	if err == nil {
		a.stats.AllocFastPath++
	}
	a.mu.Unlock()

	switch {
	case err == nil:
		return p
	case !errors.Is(err, core.ErrNoFit):
		a.log.Debug("ALLOC rejected", "size", size, "align", align, "err", err)
		a.recordFailure()
		return 0
	}

	p, ferr := a.expand(size, align)
	if ferr != nil {
		a.recordFailure()
		a.fail(ferr)
		return 0
	}
	if p == 0 {
		a.log.Debug("ALLOC failed after expand", "size", size, "align", align)
		a.recordFailure()
	}
	return p
}

// allocateLocked runs one first-fit search. The caller holds mu.
func (a *Allocator) allocateLocked(size, align uintptr) (uintptr, error) {
	p, err := a.heap.AllocateFirstFit(size, align)
	if err != nil {
		return 0, err
	}
	a.stats.BytesAllocated += int64(core.BlockSize(size))
	a.log.Debug("ALLOC", "addr", addrAttr(p), "size", size)
	return p, nil
}

func (a *Allocator) recordFailure() {
	a.mu.Lock()
	a.stats.AllocFailures++
	a.mu.Unlock()
}

// expand grows the heap far enough for (size, align) and retries the
// allocation. Growth is rounded up to whole pages.
//
// The heap lock is only held to read the bounds and to commit the new top.
// Frames are allocated and mapped without it, so nothing the collaborators
// do can deadlock against this heap. The retry happens in the same critical
// section as the commit so concurrent allocations cannot take the new pages
// first.
func (a *Allocator) expand(size, align uintptr) (uintptr, *fatal.Error) {
	a.growMu.Lock()
	defer a.growMu.Unlock()

	a.mu.Lock()
	// Another goroutine may have grown the heap while we waited.
	if p, err := a.allocateLocked(size, align); err == nil {
		a.stats.AllocSlowPath++
		a.mu.Unlock()
		return p, nil
	}
	bottom, top := a.heap.Bottom(), a.heap.Top()
	reserved := a.reservation.Len
	a.mu.Unlock()

	by, ok := core.Growth(size, align)
	var grow, newTop uintptr
	if ok {
		grow, ok = buf.AddOverflowSafe(by, format.PageMask)
		grow = format.AlignDown(grow, format.PageSize)
	}
	if ok {
		newTop, ok = buf.AddOverflowSafe(top, grow)
	}
	if !ok || newTop-bottom > reserved {
		return 0, &fatal.Error{Kind: fatal.ExpansionDenied, Op: "expand", Addr: top, Size: by}
	}

	a.log.Debug("EXTEND", "top", addrAttr(newTop), "pages", format.Pages(grow))

	for page := top; page < newTop; page += format.PageSize {
		f, err := a.frames.AllocateFrame()
		if err != nil {
			return 0, &fatal.Error{Kind: fatal.PhysicalMemoryExhausted, Op: "expand", Addr: page, Err: err}
		}
		if err := a.space.Unmap(page, format.PageSize); err != nil {
			return 0, &fatal.Error{Kind: fatal.MappingFailed, Op: "expand", Addr: page, Err: err}
		}
		if err := a.space.MapFrame(f, page, vm.Writable); err != nil {
			return 0, &fatal.Error{Kind: fatal.MappingFailed, Op: "expand", Addr: page, Err: err}
		}
	}

	a.mu.Lock()
	a.heap.Extend(grow)
	a.stats.GrowCalls++
	a.stats.GrowBytes += int64(grow)
	p, err := a.allocateLocked(size, align)
	if err == nil {
		a.stats.AllocSlowPath++
	}
	a.mu.Unlock()

	if a.onGrow != nil {
		a.onGrow(addr.Span(top, newTop))
	}
	return p, nil
}

// Free returns a block to the heap. With PoisonOnFree every freed byte is
// overwritten with 0x7F first.
func (a *Allocator) Free(ptr, size, align uintptr) {
	a.log.Debug("FREE", "addr", addrAttr(ptr), "size", size)

	if a.cfg.PoisonOnFree {
		if err := a.space.Fill(ptr, size, format.FreedByteSentinel); err != nil {
			a.log.Warn("poisoning freed block failed", "addr", addrAttr(ptr), "size", size, "err", err)
		}
	}

	a.mu.Lock()
	a.heap.Deallocate(ptr, size, align)
	a.stats.FreeCalls++
	a.stats.BytesFreed += int64(core.BlockSize(size))
	a.mu.Unlock()
}

func (a *Allocator) fail(err *fatal.Error) {
	if a.cfg.Fatal != nil {
		a.cfg.Fatal(err)
		return
	}
	fatal.Terminate(err)
}

// Stats returns a snapshot of the allocator statistics.
func (a *Allocator) Stats() heap.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Bottom, s.Top, s.Used = a.heap.Bottom(), a.heap.Top(), a.heap.Used()
	return s
}

// Bounds returns the mapped heap range [bottom, top).
func (a *Allocator) Bounds() addr.Range {
	a.mu.Lock()
	defer a.mu.Unlock()
	return addr.Span(a.heap.Bottom(), a.heap.Top())
}

// Reservation returns the full reserved range, empty before first use.
func (a *Allocator) Reservation() addr.Range {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reservation
}

// Initialized reports whether the reservation has been made.
func (a *Allocator) Initialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heap.Bottom() != 0
}

// Memory gives checked access to heap memory.
func (a *Allocator) Memory() vm.Memory {
	return a.space
}

// addrAttr formats addresses in hex in log records.
func addrAttr(p uintptr) slog.Value {
	return slog.StringValue(fmt.Sprintf("%#x", p))
}

package vm

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/ranges"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
)

// pageTable is the bookkeeping shared by both backends.
//
// NOT thread-safe. The owning backend holds its mutex.
type pageTable struct {
	reserved []addr.Range
	mapped   map[uintptr]mapping
	guards   *ranges.Set
}

func newPageTable() pageTable {
	return pageTable{
		mapped: make(map[uintptr]mapping),
		guards: ranges.NewSet(),
	}
}

// reservation returns the index of the reservation holding [va, va+n).
func (pt *pageTable) reservation(va, n uintptr) (int, error) {
	for i, r := range pt.reserved {
		if !r.Contains(va) {
			continue
		}
		if _, err := buf.CheckRange(r.Start, r.Len, va, n); err != nil {
			return -1, fmt.Errorf("%w: %w", ErrNotReserved, err)
		}
		return i, nil
	}
	return -1, fmt.Errorf("%w: %#x", ErrNotReserved, va)
}

// checkPages validates a page-granular request and returns its reservation.
func (pt *pageTable) checkPages(va, size uintptr) (int, error) {
	if !format.IsAligned(va, format.PageSize) || !format.IsAligned(size, format.PageSize) {
		return -1, fmt.Errorf("%w: va=%#x size=%#x", ErrUnaligned, va, size)
	}
	return pt.reservation(va, size)
}

func (pt *pageTable) mapPage(f frame.Frame, va uintptr, flags Flags) error {
	if _, err := pt.checkPages(va, format.PageSize); err != nil {
		return err
	}
	if _, ok := pt.mapped[va]; ok {
		return fmt.Errorf("%w: %#x", ErrAlreadyMapped, va)
	}
	pt.mapped[va] = mapping{frame: f, flags: flags}
	pt.guards.Remove(addr.New(va, format.PageSize))
	return nil
}

// unmap drops mappings and guards in the range.
func (pt *pageTable) unmap(r addr.Range) {
	// Walk whichever is smaller: the range or the mapping table.
	if uintptr(len(pt.mapped)) < r.Len/format.PageSize {
		for va := range pt.mapped {
			if r.Contains(va) {
				delete(pt.mapped, va)
			}
		}
	} else {
		for va := r.Start; va < r.End(); va += format.PageSize {
			delete(pt.mapped, va)
		}
	}
	pt.guards.Remove(r)
}

func (pt *pageTable) guard(r addr.Range) {
	pt.unmap(r)
	pt.guards.Add(r)
}

// check verifies every page touched by [va, va+n) is mapped, and writable
// when write is set. It calls fn for each page-sized piece in order.
func (pt *pageTable) check(va, n uintptr, write bool, fn func(m mapping, page, lo, hi uintptr)) error {
	if n == 0 {
		return nil
	}
	r, err := addr.Checked(va, n)
	if err != nil {
		return err
	}
	var fault error
	r.Pages(func(page uintptr) bool {
		m, ok := pt.mapped[page]
		first := max(page, va)
		switch {
		case !ok:
			fault = &Fault{Addr: first, Write: write, Guard: pt.guards.Contains(page)}
		case write && m.flags&Writable == 0:
			fault = &Fault{Addr: first, Write: true}
		}
		return fault == nil
	})
	if fault != nil {
		return fault
	}
	if fn == nil {
		return nil
	}
	r.Pages(func(page uintptr) bool {
		lo := max(page, va) - page
		hi := min(page+format.PageSize, r.End()) - page
		fn(pt.mapped[page], page, lo, hi)
		return true
	})
	return nil
}

func (pt *pageTable) lookup(va uintptr) (frame.Frame, bool) {
	m, ok := pt.mapped[format.AlignDown(va, format.PageSize)]
	return m.frame, ok
}

func (pt *pageTable) mappedRanges() []addr.Range {
	set := ranges.NewSet()
	for va := range pt.mapped {
		set.Add(addr.New(va, format.PageSize))
	}
	return set.Ranges()
}

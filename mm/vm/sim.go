package vm

import (
	"fmt"
	"sync"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
)

// SimBase is where the simulated address space hands out its first
// reservation.
const SimBase = 0x4000_0000

// FrameMemory resolves a frame to its contents.
type FrameMemory interface {
	Bytes(f frame.Frame) []byte
}

// Sim is a simulated address space. Addresses are synthetic; the bytes of a
// mapped page are the bytes of the frame mapped there.
type Sim struct {
	mu   sync.Mutex
	mem  FrameMemory
	next uintptr // next reservation start
	pt   pageTable
}

// NewSim creates an empty simulated address space over mem.
func NewSim(mem FrameMemory) *Sim {
	return &Sim{
		mem:  mem,
		next: SimBase,
		pt:   newPageTable(),
	}
}

// FindVirtualSpace reserves the next free range. Reservations are separated
// by one unreserved page.
func (s *Sim) FindVirtualSpace(size uintptr) (addr.Range, error) {
	if size == 0 {
		return addr.Range{}, fmt.Errorf("%w: zero-sized reservation", ErrNoVirtualSpace)
	}
	size = format.AlignPage(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	end, ok := buf.AddOverflowSafe(s.next, size)
	if !ok || end == 0 {
		return addr.Range{}, fmt.Errorf("%w: %#x bytes", ErrNoVirtualSpace, size)
	}
	next, ok := buf.AddOverflowSafe(end, format.PageSize)
	if !ok {
		return addr.Range{}, fmt.Errorf("%w: %#x bytes", ErrNoVirtualSpace, size)
	}
	r := addr.New(s.next, size)
	s.pt.reserved = append(s.pt.reserved, r)
	s.next = next
	return r, nil
}

func (s *Sim) MapFrame(f frame.Frame, va uintptr, flags Flags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pt.mapPage(f, va, flags)
}

func (s *Sim) Unmap(va, size uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pt.checkPages(va, size); err != nil {
		return err
	}
	s.pt.unmap(addr.New(va, size))
	return nil
}

func (s *Sim) Guard(va, size uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pt.checkPages(va, size); err != nil {
		return err
	}
	s.pt.guard(addr.New(va, size))
	return nil
}

func (s *Sim) ReadAt(p []byte, va uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := uintptr(0)
	return s.pt.check(va, uintptr(len(p)), false, func(m mapping, _, lo, hi uintptr) {
		off += uintptr(copy(p[off:], s.mem.Bytes(m.frame)[lo:hi]))
	})
}

func (s *Sim) WriteAt(p []byte, va uintptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := uintptr(0)
	return s.pt.check(va, uintptr(len(p)), true, func(m mapping, _, lo, hi uintptr) {
		off += uintptr(copy(s.mem.Bytes(m.frame)[lo:hi], p[off:]))
	})
}

func (s *Sim) Fill(va, n uintptr, v byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pt.check(va, n, true, func(m mapping, _, lo, hi uintptr) {
		page := s.mem.Bytes(m.frame)[lo:hi]
		for i := range page {
			page[i] = v
		}
	})
}

func (s *Sim) Mapped() []addr.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pt.mappedRanges()
}

func (s *Sim) Guarded() []addr.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pt.guards.Ranges()
}

func (s *Sim) Lookup(va uintptr) (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pt.lookup(va)
}

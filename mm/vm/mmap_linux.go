//go:build linux

package vm

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
)

// frameFile is a frame store whose frames can be mapped from a file.
type frameFile interface {
	Fd() int
}

// Mmap is an address space over real virtual memory of this process.
type Mmap struct {
	mu      sync.Mutex
	fd      int
	regions [][]byte // one PROT_NONE reservation per FindVirtualSpace call
	pt      pageTable
}

// NewMmap creates an address space mapping frames of store, which must be
// file backed (frame.MemfdStore).
func NewMmap(store frame.Store) (*Mmap, error) {
	ff, ok := store.(frameFile)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNoFrameFile, store)
	}
	return &Mmap{fd: ff.Fd(), pt: newPageTable()}, nil
}

// FindVirtualSpace reserves an inaccessible range; nothing is committed.
func (m *Mmap) FindVirtualSpace(size uintptr) (addr.Range, error) {
	if size == 0 {
		return addr.Range{}, fmt.Errorf("%w: zero-sized reservation", ErrNoVirtualSpace)
	}
	size = format.AlignPage(size)
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return addr.Range{}, fmt.Errorf("%w: mmap %#x: %w", ErrNoVirtualSpace, size, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r := addr.New(uintptr(unsafe.Pointer(unsafe.SliceData(mem))), size)
	m.regions = append(m.regions, mem)
	m.pt.reserved = append(m.pt.reserved, r)
	return r, nil
}

func (m *Mmap) MapFrame(f frame.Frame, va uintptr, flags Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.pt.checkPages(va, format.PageSize)
	if err != nil {
		return err
	}
	if _, ok := m.pt.mapped[va]; ok {
		return fmt.Errorf("%w: %#x", ErrAlreadyMapped, va)
	}
	prot := unix.PROT_READ
	if flags&Writable != 0 {
		prot |= unix.PROT_WRITE
	}
	if _, err := unix.MmapPtr(m.fd, int64(f.Addr()), m.pointer(i, va), format.PageSize, prot, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
		return fmt.Errorf("vm: map %v at %#x: %w", f, va, err)
	}
	return m.pt.mapPage(f, va, flags)
}

func (m *Mmap) Unmap(va, size uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.inaccessible(va, size); err != nil {
		return err
	}
	m.pt.unmap(addr.New(va, size))
	return nil
}

func (m *Mmap) Guard(va, size uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.inaccessible(va, size); err != nil {
		return err
	}
	m.pt.guard(addr.New(va, size))
	return nil
}

// inaccessible replaces [va, va+size) with a fresh PROT_NONE mapping, which
// drops any frame mapped there while keeping the reservation.
func (m *Mmap) inaccessible(va, size uintptr) error {
	i, err := m.pt.checkPages(va, size)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	_, err = unix.MmapPtr(-1, 0, m.pointer(i, va), size, unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED|unix.MAP_NORESERVE)
	if err != nil {
		return fmt.Errorf("vm: protect [%#x, %#x): %w", va, va+size, err)
	}
	return nil
}

func (m *Mmap) ReadAt(p []byte, va uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, err := m.accessible(va, uintptr(len(p)), false)
	if err != nil {
		return err
	}
	copy(p, mem)
	return nil
}

func (m *Mmap) WriteAt(p []byte, va uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, err := m.accessible(va, uintptr(len(p)), true)
	if err != nil {
		return err
	}
	copy(mem, p)
	return nil
}

func (m *Mmap) Fill(va, n uintptr, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, err := m.accessible(va, n, true)
	if err != nil {
		return err
	}
	for i := range mem {
		mem[i] = v
	}
	return nil
}

// accessible checks the page table and returns the bytes of [va, va+n).
func (m *Mmap) accessible(va, n uintptr, write bool) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if err := m.pt.check(va, n, write, nil); err != nil {
		return nil, err
	}
	i, err := m.pt.reservation(va, n)
	if err != nil {
		return nil, err
	}
	mem, ok := buf.Slice(m.regions[i], va-m.pt.reserved[i].Start, n)
	if !ok {
		return nil, fmt.Errorf("%w: [%#x, %#x)", ErrNotReserved, va, va+n)
	}
	return mem, nil
}

func (m *Mmap) pointer(region int, va uintptr) unsafe.Pointer {
	return unsafe.Pointer(&m.regions[region][va-m.pt.reserved[region].Start])
}

func (m *Mmap) Mapped() []addr.Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pt.mappedRanges()
}

func (m *Mmap) Guarded() []addr.Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pt.guards.Ranges()
}

func (m *Mmap) Lookup(va uintptr) (frame.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pt.lookup(va)
}

// Close releases every reservation. Memory handed out from them must not be
// used afterwards.
func (m *Mmap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, mem := range m.regions {
		errs = append(errs, unix.Munmap(mem))
	}
	m.regions = nil
	m.pt = newPageTable()
	return errors.Join(errs...)
}

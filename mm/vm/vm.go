package vm

import (
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
)

// Flags are the protection bits of a mapping. Every mapping is readable.
type Flags uint8

const (
	// Writable allows writes to the page.
	Writable Flags = 1 << iota
	// User marks the page as belonging to an unprivileged process.
	User
)

// Memory gives checked access to mapped pages.
type Memory interface {
	// ReadAt copies len(p) bytes starting at va into p.
	ReadAt(p []byte, va uintptr) error

	// WriteAt copies p into memory starting at va.
	WriteAt(p []byte, va uintptr) error

	// Fill sets n bytes starting at va to v.
	Fill(va, n uintptr, v byte) error
}

// AddressSpace is one page table together with its reservations.
type AddressSpace interface {
	Memory

	// FindVirtualSpace reserves size bytes (rounded up to pages) of unused
	// virtual addresses without mapping anything.
	FindVirtualSpace(size uintptr) (addr.Range, error)

	// MapFrame maps f at the page va with the given protection.
	MapFrame(f frame.Frame, va uintptr, flags Flags) error

	// Unmap removes any mapping or guard in [va, va+size).
	Unmap(va, size uintptr) error

	// Guard unmaps [va, va+size) and marks it as a guard range.
	Guard(va, size uintptr) error
}

// Inspector reports the layout of an address space.
type Inspector interface {
	// Mapped returns the coalesced mapped ranges.
	Mapped() []addr.Range

	// Guarded returns the coalesced guard ranges.
	Guarded() []addr.Range

	// Lookup returns the frame mapped at the page holding va.
	Lookup(va uintptr) (frame.Frame, bool)
}

type mapping struct {
	frame frame.Frame
	flags Flags
}

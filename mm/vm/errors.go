package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrFault matches every *Fault.
	ErrFault = errors.New("vm: page fault")

	// ErrNoVirtualSpace indicates no free virtual range of the requested size exists.
	ErrNoVirtualSpace = errors.New("vm: no virtual space left")

	// ErrNotReserved indicates an address outside every reservation.
	ErrNotReserved = errors.New("vm: address not reserved")

	// ErrUnaligned indicates an address or size that is not page aligned.
	ErrUnaligned = errors.New("vm: address or size not page aligned")

	// ErrAlreadyMapped indicates a map request over a page that is already mapped.
	ErrAlreadyMapped = errors.New("vm: page already mapped")

	// ErrNoFrameFile indicates a frame store that cannot be mapped by the mmap backend.
	ErrNoFrameFile = errors.New("vm: frame store has no file descriptor")
)

// Fault describes an access to a page that is unmapped, guarded, or
// read-only when written.
type Fault struct {
	Addr  uintptr // first faulting address
	Write bool    // the access was a write
	Guard bool    // the page is a guard page
}

func (f *Fault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	switch {
	case f.Guard:
		return fmt.Sprintf("vm: %s fault at %#x (guard page)", kind, f.Addr)
	default:
		return fmt.Sprintf("vm: %s fault at %#x", kind, f.Addr)
	}
}

// Is reports whether target is ErrFault.
func (f *Fault) Is(target error) bool {
	return target == ErrFault
}

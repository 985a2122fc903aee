// Package fatal defines the terminal failures of the heap allocators and the
// single process-wide handler that consumes them.
//
// Allocators never abort directly. They build an *Error and hand it to
// Terminate, whose default handler logs the failure and exits the process.
// Tests install their own handler with SetHandler.
package fatal

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/joshuapare/heapkit/internal/logger"
)

// ExitCode is the status the default handler exits with.
const ExitCode = 134

// Kind classifies a terminal failure.
type Kind uint8

const (
	// OutOfMemory: an allocation could not be satisfied even after growing.
	OutOfMemory Kind = iota + 1
	// ExpansionDenied: growth would exceed the fixed virtual reservation.
	ExpansionDenied
	// PhysicalMemoryExhausted: the frame allocator is empty.
	PhysicalMemoryExhausted
	// MappingFailed: the address space refused to map or unmap a page.
	MappingFailed
	// InitFailed: the heap could not be bootstrapped.
	InitFailed
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case ExpansionDenied:
		return "expansion denied"
	case PhysicalMemoryExhausted:
		return "physical memory exhausted"
	case MappingFailed:
		return "mapping failed"
	case InitFailed:
		return "init failed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is a terminal allocator failure.
type Error struct {
	Kind Kind
	Op   string  // operation that failed: "init", "expand", "alloc"
	Addr uintptr // address involved, if any
	Size uintptr // size involved, if any
	Err  error   // underlying collaborator error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("heap %s: %s", e.Op, e.Kind)
	if e.Addr != 0 {
		msg += fmt.Sprintf(" at %#x", e.Addr)
	}
	if e.Size != 0 {
		msg += fmt.Sprintf(" (size %#x)", e.Size)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

// Handler consumes a terminal failure. The default never returns.
type Handler func(*Error)

var (
	handler atomic.Pointer[Handler]

	// exit is swapped out by tests of the default handler.
	exit = os.Exit
)

// Default logs err and exits with ExitCode.
func Default(err *Error) {
	logger.Error("fatal heap failure", "kind", err.Kind.String(), "op", err.Op, "err", err)
	fmt.Fprintln(os.Stderr, err)
	exit(ExitCode)
}

// SetHandler installs h as the process-wide handler and returns a function
// restoring the previous one.
func SetHandler(h Handler) (restore func()) {
	prev := handler.Swap(&h)
	return func() { handler.Store(prev) }
}

// Terminate hands err to the process-wide handler. With the default handler
// it does not return.
func Terminate(err *Error) {
	if h := handler.Load(); h != nil && *h != nil {
		(*h)(err)
		return
	}
	Default(err)
}

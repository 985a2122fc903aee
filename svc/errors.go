package svc

import "fmt"

// Code is the error code returned by the kernel for a privileged call.
type Code uint8

const (
	// InvalidSize: the requested heap size is not a multiple of the growth unit.
	InvalidSize Code = iota + 1
	// MemoryFull: the request exceeds the process limit or physical memory ran out.
	MemoryFull
	// SessionClosed: the gate serving the call has shut down.
	SessionClosed
)

func (c Code) String() string {
	switch c {
	case InvalidSize:
		return "invalid size"
	case MemoryFull:
		return "memory full"
	case SessionClosed:
		return "session closed"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// KernelError is the failure of a privileged call.
type KernelError struct {
	Code Code
	Err  error // cause inside the kernel, if any
}

var (
	ErrInvalidSize   = &KernelError{Code: InvalidSize}
	ErrMemoryFull    = &KernelError{Code: MemoryFull}
	ErrSessionClosed = &KernelError{Code: SessionClosed}
)

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("svc: %s: %v", e.Code, e.Err)
	}
	return "svc: " + e.Code.String()
}

func (e *KernelError) Unwrap() error {
	return e.Err
}

// Is matches any *KernelError with the same code.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	return ok && t.Code == e.Code
}

func kernelError(code Code, format string, args ...any) *KernelError {
	return &KernelError{Code: code, Err: fmt.Errorf(format, args...)}
}

//go:build linux

package frame

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// MemfdStore keeps frames in an anonymous memory file. The whole file is
// also mapped once as a direct view so frame contents can be read without a
// virtual mapping, like a kernel's physical-memory window.
type MemfdStore struct {
	fd     int
	direct []byte
	n      int
}

// NewMemfdStore creates a store of n frames. Pages of the file are only
// committed when first written.
func NewMemfdStore(n int) (*MemfdStore, error) {
	if n <= 0 {
		return nil, fmt.Errorf("frame: memfd store needs at least one frame, got %d", n)
	}
	bytes, ok := buf.MulOverflowSafe(uintptr(n), format.PageSize)
	if !ok || uint64(bytes) > math.MaxInt64 {
		return nil, fmt.Errorf("frame: memfd store of %d frames overflows", n)
	}
	size := int64(bytes)
	fd, err := unix.MemfdCreate("heapkit-frames", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("frame: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("frame: ftruncate %d: %w", size, err)
	}
	direct, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("frame: mmap direct view: %w", err)
	}
	return &MemfdStore{fd: fd, direct: direct, n: n}, nil
}

// Fd returns the memory file descriptor. Frame f lives at offset f.Addr().
func (s *MemfdStore) Fd() int {
	return s.fd
}

func (s *MemfdStore) Frame(f Frame) []byte {
	off := f.Addr()
	return s.direct[off : off+format.PageSize : off+format.PageSize]
}

func (s *MemfdStore) Frames() int {
	return s.n
}

func (s *MemfdStore) Close() error {
	var errs []error
	if s.direct != nil {
		errs = append(errs, unix.Munmap(s.direct))
		s.direct = nil
	}
	if s.fd >= 0 {
		errs = append(errs, unix.Close(s.fd))
		s.fd = -1
	}
	return errors.Join(errs...)
}

//go:build !linux

package vm

import (
	"fmt"

	"github.com/joshuapare/heapkit/mm/frame"
)

func newPlatform(*frame.Pool) (AddressSpace, error) {
	return nil, fmt.Errorf("%w: no mmap backend on this platform", ErrNoFrameFile)
}

package vm

import (
	"sync"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/mm/frame"
)

var defaultSpace = sync.OnceValue(func() AddressSpace {
	return New(frame.Default())
})

// Default returns the process-wide kernel address space, mapping frames from
// frame.Default().
func Default() AddressSpace {
	return defaultSpace()
}

// New returns the best address space for pool on this platform: real
// mappings when the pool is file backed, the simulator otherwise.
func New(pool *frame.Pool) AddressSpace {
	space, err := newPlatform(pool)
	if err != nil {
		logger.Debug("using simulated address space", "err", err)
		return NewSim(pool)
	}
	return space
}

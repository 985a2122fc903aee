package frame

import (
	"os"
	"strconv"
	"sync"

	"github.com/joshuapare/heapkit/internal/logger"
)

const (
	// envFrames overrides the number of frames in the default pool.
	envFrames = "HEAPKIT_FRAMES"

	// defaultFrames gives the default pool 256MB of physical memory.
	defaultFrames = 65536
)

var defaultPool = sync.OnceValue(func() *Pool {
	n := defaultFrames
	if v := os.Getenv(envFrames); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		} else {
			logger.Warn("ignoring bad frame count", "env", envFrames, "value", v)
		}
	}
	return NewPlatformPool(n)
})

// NewPlatformPool returns a pool of n frames backed by the platform store
// (a memfd on Linux), falling back to Go memory when it is unavailable.
func NewPlatformPool(n int) *Pool {
	store, err := newPlatformStore(n)
	if err != nil {
		logger.Warn("platform frame store unavailable, using Go memory", "err", err)
		return NewPool(n)
	}
	return NewPoolWithStore(store)
}

// Default returns the process-wide frame pool, creating it on first use.
func Default() *Pool {
	return defaultPool()
}

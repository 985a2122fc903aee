package kernel

import (
	"log/slog"

	"github.com/joshuapare/heapkit/heap/fatal"
	"github.com/joshuapare/heapkit/internal/format"
)

// Config tunes a kernel allocator. A nil *Config selects DefaultConfig().
type Config struct {
	// ReservedSize is the virtual range claimed on first use. Zero means
	// format.KernelHeapReservation. Rounded up to a page, at least one page.
	ReservedSize uintptr

	// PoisonOnFree overwrites every freed byte with format.FreedByteSentinel.
	PoisonOnFree bool

	// Logger receives ALLOC/FREE/EXTEND records at debug level.
	// Nil means logger.L.
	Logger *slog.Logger

	// Fatal consumes terminal failures. Nil means fatal.Terminate.
	Fatal fatal.Handler
}

// DefaultConfig returns the configuration used for a nil *Config.
// Poisoning is on in builds tagged heapdebug.
func DefaultConfig() Config {
	return Config{
		ReservedSize: format.KernelHeapReservation,
		PoisonOnFree: debugBuild,
	}
}

func (c *Config) normalized() Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.ReservedSize == 0 {
		out.ReservedSize = format.KernelHeapReservation
	}
	out.ReservedSize = max(format.AlignPage(out.ReservedSize), format.PageSize)
	return out
}

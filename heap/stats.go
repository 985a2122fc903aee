package heap

import (
	"fmt"
	"strings"

	"github.com/joshuapare/heapkit/internal/humanize"
)

// Stats holds allocator statistics.
type Stats struct {
	AllocCalls     int   // Total Alloc() calls
	AllocFastPath  int   // Allocations that succeeded without growing
	AllocSlowPath  int   // Allocations that succeeded after growing
	AllocFailures  int   // Alloc() calls that returned 0
	FreeCalls      int   // Total Free() calls
	GrowCalls      int   // Successful growth events
	GrowBytes      int64 // Total bytes added by growth
	BytesAllocated int64 // Total bytes handed out (after block rounding)
	BytesFreed     int64 // Total bytes returned

	Bottom uintptr // Current heap bottom (0 before the first growth of a user heap)
	Top    uintptr // Current heap top
	Used   uintptr // Bytes currently allocated
}

// Size returns the current managed size.
func (s Stats) Size() uintptr {
	return s.Top - s.Bottom
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "heap:        [%#x, %#x) %s, %s used (%s)\n",
		s.Bottom, s.Top, humanize.Bytes(s.Size()), humanize.Bytes(s.Used), humanize.Percent(s.Used, s.Size()))
	fmt.Fprintf(&b, "alloc calls: %s (fast=%s, slow=%s, failed=%s)\n",
		humanize.Count(s.AllocCalls), humanize.Count(s.AllocFastPath),
		humanize.Count(s.AllocSlowPath), humanize.Count(s.AllocFailures))
	fmt.Fprintf(&b, "free calls:  %s\n", humanize.Count(s.FreeCalls))
	fmt.Fprintf(&b, "grow calls:  %s (%s)\n", humanize.Count(s.GrowCalls), humanize.Bytes(s.GrowBytes))
	fmt.Fprintf(&b, "allocated:   %s, freed %s\n", humanize.Bytes(s.BytesAllocated), humanize.Bytes(s.BytesFreed))
	return b.String()
}

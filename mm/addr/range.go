// Package addr defines the opaque address-range values used by the memory
// manager and the heaps. Raw addresses are plain uintptr values; they are
// never dereferenced here.
package addr

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Range is a half-open address range [Start, Start+Len).
type Range struct {
	Start uintptr
	Len   uintptr
}

// New returns the range [start, start+n).
func New(start, n uintptr) Range {
	return Range{Start: start, Len: n}
}

// Span returns the range [start, end). end must not be below start.
func Span(start, end uintptr) Range {
	return Range{Start: start, Len: end - start}
}

// End returns the exclusive end address.
func (r Range) End() uintptr {
	return r.Start + r.Len
}

// Empty reports whether the range covers no bytes.
func (r Range) Empty() bool {
	return r.Len == 0
}

// Contains reports whether a lies inside the range.
func (r Range) Contains(a uintptr) bool {
	return a >= r.Start && a-r.Start < r.Len
}

// ContainsRange reports whether o lies entirely inside r.
func (r Range) ContainsRange(o Range) bool {
	if o.Empty() {
		return r.Contains(o.Start) || o.Start == r.End()
	}
	return o.Start >= r.Start && o.End() <= r.End() && o.End() > o.Start
}

// Overlaps reports whether the two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// Adjacent reports whether o starts exactly where r ends, or the reverse.
func (r Range) Adjacent(o Range) bool {
	return r.End() == o.Start || o.End() == r.Start
}

// Split cuts the range at off bytes from its start.
func (r Range) Split(off uintptr) (Range, Range) {
	if off > r.Len {
		off = r.Len
	}
	return Range{Start: r.Start, Len: off}, Range{Start: r.Start + off, Len: r.Len - off}
}

// PageAligned reports whether both bounds sit on page boundaries.
func (r Range) PageAligned() bool {
	return format.IsAligned(r.Start, format.PageSize) && format.IsAligned(r.Len, format.PageSize)
}

// Pages calls fn for the start address of every page overlapping the range,
// stopping early when fn returns false.
func (r Range) Pages(fn func(page uintptr) bool) {
	if r.Empty() {
		return
	}
	end := format.AlignPage(r.End())
	for p := format.AlignDown(r.Start, format.PageSize); p < end; p += format.PageSize {
		if !fn(p) {
			return
		}
	}
}

// Checked returns [start, start+n) or an error when the end would overflow.
func Checked(start, n uintptr) (Range, error) {
	if _, ok := buf.AddOverflowSafe(start, n); !ok {
		return Range{}, fmt.Errorf("addr: range %#x+%#x overflows", start, n)
	}
	return Range{Start: start, Len: n}, nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End())
}

// Package ranges tracks sets of page ranges, such as the guarded part of a
// reservation.
//
// The set accumulates ranges cheaply and coalesces them into page-aligned,
// sorted, non-overlapping ranges the first time they are queried.
package ranges

import (
	"sort"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
)

// defaultRangeCapacity is the pre-allocated capacity for ranges.
const defaultRangeCapacity = 16

// Set accumulates page ranges and coalesces them on demand.
//
// NOT thread-safe. Callers hold their own lock.
type Set struct {
	ranges   []addr.Range
	pageSize uintptr
	sorted   bool // ranges are coalesced and sorted
}

// NewSet creates an empty page-granular range set.
func NewSet() *Set {
	return &Set{
		ranges:   make([]addr.Range, 0, defaultRangeCapacity),
		pageSize: format.PageSize,
		sorted:   true,
	}
}

// Add records a range. It is page-aligned and merged with its neighbours at
// query time.
func (s *Set) Add(r addr.Range) {
	if r.Empty() {
		return
	}
	s.ranges = append(s.ranges, r)
	s.sorted = false
}

// Remove drops every page overlapping r from the set.
func (s *Set) Remove(r addr.Range) {
	if r.Empty() {
		return
	}
	s.normalize()

	start := format.AlignDown(r.Start, s.pageSize)
	end := format.AlignUp(r.End(), s.pageSize)

	out := s.ranges[:0:0]
	for _, cur := range s.ranges {
		if cur.End() <= start || cur.Start >= end {
			out = append(out, cur)
			continue
		}
		if cur.Start < start {
			out = append(out, addr.Span(cur.Start, start))
		}
		if cur.End() > end {
			out = append(out, addr.Span(end, cur.End()))
		}
	}
	s.ranges = out
}

// Contains reports whether the page holding a is in the set.
func (s *Set) Contains(a uintptr) bool {
	s.normalize()
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End() > a
	})
	return i < len(s.ranges) && s.ranges[i].Contains(a)
}

// Ranges returns the coalesced ranges.
//
// These are page-aligned, sorted, and merged. The slice is a copy.
func (s *Set) Ranges() []addr.Range {
	s.normalize()
	out := make([]addr.Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

func (s *Set) normalize() {
	if s.sorted {
		return
	}
	s.ranges = coalesce(s.ranges, s.pageSize)
	s.sorted = true
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping/adjacent ranges.
//
// Returns a new slice of non-overlapping, sorted ranges.
func coalesce(in []addr.Range, pageSize uintptr) []addr.Range {
	if len(in) == 0 {
		return in
	}

	// Page-align all ranges
	aligned := make([]addr.Range, len(in))
	for i, r := range in {
		start := format.AlignDown(r.Start, pageSize)
		end := format.AlignUp(r.End(), pageSize)
		aligned[i] = addr.Span(start, end)
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Start < aligned[j].Start
	})

	// Merge overlapping/adjacent ranges
	merged := make([]addr.Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Start <= current.End() {
			if next.End() > current.End() {
				current.Len = next.End() - current.Start
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	return merged
}

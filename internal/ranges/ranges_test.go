package ranges

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/mm/addr"
)

// Test: page alignment of an unaligned range.
func Test_Set_PageAlignment(t *testing.T) {
	s := NewSet()
	s.Add(addr.New(100, 200))

	got := s.Ranges()
	require.Len(t, got, 1)
	require.Equal(t, addr.New(0, 4096), got[0])
}

// Test: adjacent and overlapping ranges merge.
func Test_Set_Coalesce(t *testing.T) {
	s := NewSet()
	s.Add(addr.New(8192, 4096))
	s.Add(addr.New(4096, 4096))
	s.Add(addr.New(20480, 4096))
	s.Add(addr.New(9000, 8192))

	require.Equal(t, []addr.Range{
		addr.Span(4096, 20480+4096),
	}, s.Ranges())
}

// Test: disjoint ranges stay separate and sorted.
func Test_Set_Disjoint(t *testing.T) {
	s := NewSet()
	s.Add(addr.New(0x10000, 0x1000))
	s.Add(addr.New(0x1000, 0x1000))

	require.Equal(t, []addr.Range{
		addr.New(0x1000, 0x1000),
		addr.New(0x10000, 0x1000),
	}, s.Ranges())
}

func Test_Set_RemoveSplits(t *testing.T) {
	s := NewSet()
	s.Add(addr.New(0x1000, 0x4000))
	s.Remove(addr.New(0x2000, 0x1000))

	require.Equal(t, []addr.Range{
		addr.New(0x1000, 0x1000),
		addr.New(0x3000, 0x2000),
	}, s.Ranges())

	require.True(t, s.Contains(0x1fff))
	require.False(t, s.Contains(0x2000))
	require.False(t, s.Contains(0x2fff))
	require.True(t, s.Contains(0x3000))
	require.False(t, s.Contains(0x5000))
}

func Test_Set_RemovePrefix(t *testing.T) {
	s := NewSet()
	s.Add(addr.New(0x1000, 0x10000))
	for page := uintptr(0x1000); page < 0x5000; page += 0x1000 {
		s.Remove(addr.New(page, 0x1000))
	}
	require.Equal(t, []addr.Range{addr.Span(0x5000, 0x11000)}, s.Ranges())
}

package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
)

// newTestSpace returns a simulated address space and the pool behind it.
func newTestSpace(t testing.TB, frames int) (*Sim, *frame.Pool) {
	t.Helper()
	pool := frame.NewPool(frames)
	return NewSim(pool), pool
}

func mapPages(t testing.TB, s AddressSpace, pool *frame.Pool, va uintptr, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f, err := pool.AllocateFrame()
		require.NoError(t, err)
		require.NoError(t, s.MapFrame(f, va+uintptr(i)*format.PageSize, Writable))
	}
}

func TestSim_FindVirtualSpace(t *testing.T) {
	s, _ := newTestSpace(t, 1)

	a, err := s.FindVirtualSpace(format.KernelHeapReservation)
	require.NoError(t, err)
	require.Equal(t, uintptr(SimBase), a.Start)
	require.Equal(t, uintptr(format.KernelHeapReservation), a.Len)

	b, err := s.FindVirtualSpace(100)
	require.NoError(t, err)
	require.Equal(t, uintptr(format.PageSize), b.Len, "size rounds up to a page")
	require.False(t, a.Overlaps(b))
	require.Greater(t, b.Start, a.End(), "reservations are separated")

	_, err = s.FindVirtualSpace(0)
	require.ErrorIs(t, err, ErrNoVirtualSpace)
}

func TestSim_MapReadWrite(t *testing.T) {
	s, pool := newTestSpace(t, 4)
	r, err := s.FindVirtualSpace(4 * format.PageSize)
	require.NoError(t, err)
	mapPages(t, s, pool, r.Start, 2)

	// Write across the page boundary.
	payload := []byte("across the boundary")
	va := r.Start + format.PageSize - 5
	require.NoError(t, s.WriteAt(payload, va))

	got := make([]byte, len(payload))
	require.NoError(t, s.ReadAt(got, va))
	require.Equal(t, payload, got)

	f, ok := s.Lookup(r.Start + format.PageSize)
	require.True(t, ok)
	require.Equal(t, payload[5:], pool.Bytes(f)[:len(payload)-5], "bytes land in the mapped frame")
}

func TestSim_Fill(t *testing.T) {
	s, pool := newTestSpace(t, 2)
	r, err := s.FindVirtualSpace(2 * format.PageSize)
	require.NoError(t, err)
	mapPages(t, s, pool, r.Start, 2)

	require.NoError(t, s.Fill(r.Start+100, format.PageSize, 0x7F))
	got := make([]byte, format.PageSize)
	require.NoError(t, s.ReadAt(got, r.Start+100))
	require.Equal(t, bytes.Repeat([]byte{0x7F}, format.PageSize), got)

	edge := make([]byte, 1)
	require.NoError(t, s.ReadAt(edge, r.Start+99))
	require.Equal(t, byte(0), edge[0])
}

func TestSim_GuardFaults(t *testing.T) {
	s, pool := newTestSpace(t, 2)
	r, err := s.FindVirtualSpace(8 * format.PageSize)
	require.NoError(t, err)
	mapPages(t, s, pool, r.Start, 1)
	require.NoError(t, s.Guard(r.Start+format.PageSize, 7*format.PageSize))

	err = s.WriteAt([]byte{1, 2}, r.Start+format.PageSize-1)
	require.ErrorIs(t, err, ErrFault)

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.True(t, fault.Guard)
	require.True(t, fault.Write)
	require.Equal(t, r.Start+format.PageSize, fault.Addr)

	require.Equal(t, []addr.Range{addr.New(r.Start+format.PageSize, 7*format.PageSize)}, s.Guarded())
	require.Equal(t, []addr.Range{addr.New(r.Start, format.PageSize)}, s.Mapped())
}

func TestSim_UnmapGuardThenMap(t *testing.T) {
	s, pool := newTestSpace(t, 2)
	r, err := s.FindVirtualSpace(4 * format.PageSize)
	require.NoError(t, err)
	require.NoError(t, s.Guard(r.Start, r.Len))

	page := r.Start + format.PageSize
	require.NoError(t, s.Unmap(page, format.PageSize))
	mapPages(t, s, pool, page, 1)

	require.NoError(t, s.WriteAt([]byte{0xAB}, page))
	require.Equal(t, []addr.Range{
		addr.New(r.Start, format.PageSize),
		addr.New(page+format.PageSize, 2*format.PageSize),
	}, s.Guarded())
}

func TestSim_MapErrors(t *testing.T) {
	s, pool := newTestSpace(t, 2)
	r, err := s.FindVirtualSpace(format.PageSize)
	require.NoError(t, err)
	f, err := pool.AllocateFrame()
	require.NoError(t, err)

	require.ErrorIs(t, s.MapFrame(f, r.Start+1, Writable), ErrUnaligned)
	require.ErrorIs(t, s.MapFrame(f, r.End()+format.PageSize, Writable), ErrNotReserved)
	require.NoError(t, s.MapFrame(f, r.Start, Writable))
	require.ErrorIs(t, s.MapFrame(f, r.Start, Writable), ErrAlreadyMapped)
	require.ErrorIs(t, s.Guard(r.Start, 2*format.PageSize), ErrNotReserved)
}

func TestSim_ReadOnlyMapping(t *testing.T) {
	s, pool := newTestSpace(t, 1)
	r, err := s.FindVirtualSpace(format.PageSize)
	require.NoError(t, err)
	f, err := pool.AllocateFrame()
	require.NoError(t, err)
	require.NoError(t, s.MapFrame(f, r.Start, 0))

	require.NoError(t, s.ReadAt(make([]byte, 8), r.Start))
	err = s.WriteAt([]byte{1}, r.Start)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.False(t, fault.Guard)
	require.True(t, fault.Write)
}

func TestSim_UnmapLargeRange(t *testing.T) {
	s, pool := newTestSpace(t, 4)
	r, err := s.FindVirtualSpace(format.KernelHeapReservation)
	require.NoError(t, err)
	mapPages(t, s, pool, r.Start, 3)

	require.NoError(t, s.Unmap(r.Start, r.Len))
	require.Empty(t, s.Mapped())
	require.ErrorIs(t, s.ReadAt(make([]byte, 1), r.Start), ErrFault)
}

//go:build linux

package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/frame"
)

func newTestMmap(t *testing.T, frames int) (*Mmap, *frame.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	store, err := frame.NewMemfdStore(frames)
	require.NoError(t, err)
	pool := frame.NewPoolWithStore(store)
	m, err := NewMmap(store)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, m.Close())
		require.NoError(t, pool.Close())
	})
	return m, pool
}

func TestMmap_MapWriteRead(t *testing.T) {
	m, pool := newTestMmap(t, 8)

	r, err := m.FindVirtualSpace(format.KernelHeapReservation)
	require.NoError(t, err)
	require.True(t, r.PageAligned())

	mapPages(t, m, pool, r.Start, 2)
	require.NoError(t, m.Guard(r.Start+2*format.PageSize, r.Len-2*format.PageSize))

	payload := []byte("physical frames")
	va := r.Start + format.PageSize - 4
	require.NoError(t, m.WriteAt(payload, va))

	got := make([]byte, len(payload))
	require.NoError(t, m.ReadAt(got, va))
	require.Equal(t, payload, got)

	f, ok := m.Lookup(r.Start)
	require.True(t, ok)
	require.Equal(t, payload[:4], pool.Bytes(f)[format.PageSize-4:], "direct view sees the mapped frame")
}

func TestMmap_GuardFaultIsReported(t *testing.T) {
	m, pool := newTestMmap(t, 2)

	r, err := m.FindVirtualSpace(4 * format.PageSize)
	require.NoError(t, err)
	mapPages(t, m, pool, r.Start, 1)
	require.NoError(t, m.Guard(r.Start+format.PageSize, 3*format.PageSize))

	err = m.Fill(r.Start, 2*format.PageSize, 0x7F)
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.True(t, fault.Guard)
}

func TestMmap_UnmapDropsFrame(t *testing.T) {
	m, pool := newTestMmap(t, 2)

	r, err := m.FindVirtualSpace(format.PageSize)
	require.NoError(t, err)
	mapPages(t, m, pool, r.Start, 1)
	require.NoError(t, m.Fill(r.Start, format.PageSize, 0x11))

	require.NoError(t, m.Unmap(r.Start, format.PageSize))
	_, ok := m.Lookup(r.Start)
	require.False(t, ok)
	require.ErrorIs(t, m.ReadAt(make([]byte, 1), r.Start), ErrFault)
}

func TestNewMmapRequiresFileStore(t *testing.T) {
	_, err := NewMmap(frame.NewPool(1).Store())
	require.ErrorIs(t, err, ErrNoFrameFile)
}

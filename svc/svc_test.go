package svc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
)

const unit = format.UserHeapGrowthUnit

func newTestHeap(t *testing.T, frames int, limit uintptr) (*ProcessHeap, *vm.Sim, *frame.Pool) {
	t.Helper()
	pool := frame.NewPool(frames)
	space := vm.NewSim(pool)
	return NewProcessHeap(space, pool, &HeapConfig{Limit: limit}), space, pool
}

func TestProcessHeap_GrowKeepsBase(t *testing.T) {
	h, space, pool := newTestHeap(t, 2048, 8*unit)

	base, err := h.SetHeapSize(unit)
	require.NoError(t, err)
	require.NotZero(t, base)
	require.Equal(t, uintptr(unit), h.Size())
	require.Equal(t, []addr.Range{addr.New(base, unit)}, space.Mapped())
	require.Equal(t, 2048-unit/format.PageSize, pool.Free())

	again, err := h.SetHeapSize(3 * unit)
	require.NoError(t, err)
	require.Equal(t, base, again, "base is stable")
	require.Equal(t, []addr.Range{addr.New(base, 3*unit)}, space.Mapped())
	require.Equal(t, []addr.Range{addr.Span(base+3*unit, base+8*unit)}, space.Guarded())
}

func TestProcessHeap_ShrinkReleasesFrames(t *testing.T) {
	h, space, pool := newTestHeap(t, 2048, 4*unit)

	base, err := h.SetHeapSize(3 * unit)
	require.NoError(t, err)

	_, err = h.SetHeapSize(unit)
	require.NoError(t, err)
	require.Equal(t, uintptr(unit), h.Size())
	require.Equal(t, []addr.Range{addr.New(base, unit)}, space.Mapped())
	require.Equal(t, 2048-unit/format.PageSize, pool.Free())

	var b [1]byte
	require.ErrorIs(t, space.ReadAt(b[:], base+unit), vm.ErrFault)
}

func TestProcessHeap_NewPagesAreZeroed(t *testing.T) {
	h, space, _ := newTestHeap(t, 1024, 2*unit)

	base, err := h.SetHeapSize(unit)
	require.NoError(t, err)
	require.NoError(t, space.Fill(base, unit, 0xCC))

	_, err = h.SetHeapSize(0)
	require.NoError(t, err)
	_, err = h.SetHeapSize(unit)
	require.NoError(t, err)

	got := make([]byte, format.PageSize)
	require.NoError(t, space.ReadAt(got, base))
	require.Equal(t, make([]byte, format.PageSize), got)
}

func TestProcessHeap_Errors(t *testing.T) {
	h, _, _ := newTestHeap(t, 1024, 2*unit)

	_, err := h.SetHeapSize(unit + format.PageSize)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = h.SetHeapSize(4 * unit)
	require.ErrorIs(t, err, ErrMemoryFull)

	var kerr *KernelError
	require.True(t, errors.As(err, &kerr))
	require.Equal(t, MemoryFull, kerr.Code)
	require.Zero(t, h.Size())
}

func TestProcessHeap_OutOfFramesRollsBack(t *testing.T) {
	h, space, pool := newTestHeap(t, 600, 4*unit)

	base, err := h.SetHeapSize(unit)
	require.NoError(t, err)

	_, err = h.SetHeapSize(2 * unit)
	require.ErrorIs(t, err, ErrMemoryFull)
	require.ErrorIs(t, err, frame.ErrOutOfMemory)
	require.Equal(t, uintptr(unit), h.Size(), "failed growth leaves the heap unchanged")
	require.Equal(t, []addr.Range{addr.New(base, unit)}, space.Mapped())
	require.Equal(t, 600-unit/format.PageSize, pool.Free())
}

func TestGate_SerializesCalls(t *testing.T) {
	h, _, _ := newTestHeap(t, 4096, 16*unit)
	g := NewGate(h)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- g.Serve(ctx) }()

	c := g.Client()
	var wg sync.WaitGroup
	bases := make([]uintptr, 8)
	for i := range bases {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base, err := c.SetHeapSize(uintptr(i+1) * unit)
			assert.NoError(t, err)
			bases[i] = base
		}()
	}
	wg.Wait()
	for _, b := range bases {
		require.Equal(t, bases[0], b)
	}
	require.Equal(t, bases[0], g.Heap().Base())

	cancel()
	require.ErrorIs(t, <-served, context.Canceled)

	_, err := c.SetHeapSize(unit)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestKernelError(t *testing.T) {
	err := kernelError(InvalidSize, "bad %d", 3)
	require.ErrorIs(t, err, ErrInvalidSize)
	require.NotErrorIs(t, err, ErrMemoryFull)
	require.Equal(t, "svc: invalid size: bad 3", err.Error())
	require.Equal(t, "svc: session closed", ErrSessionClosed.Error())
	require.Equal(t, "code(9)", Code(9).String())
}

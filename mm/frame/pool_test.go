package frame

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

func TestPool_AllocateUntilExhausted(t *testing.T) {
	p := NewPool(70)
	seen := make(map[uint32]bool)
	for i := 0; i < 70; i++ {
		f, err := p.AllocateFrame()
		require.NoError(t, err)
		require.False(t, seen[f.Number], "frame %v handed out twice", f)
		require.Less(t, int(f.Number), 70)
		seen[f.Number] = true
	}
	require.Equal(t, 0, p.Free())

	_, err := p.AllocateFrame()
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestPool_FreeAndReuse(t *testing.T) {
	p := NewPool(4)
	var frames []Frame
	for i := 0; i < 4; i++ {
		f, err := p.AllocateFrame()
		require.NoError(t, err)
		frames = append(frames, f)
	}

	require.NoError(t, p.FreeFrame(frames[2]))
	require.Equal(t, 1, p.Free())

	f, err := p.AllocateFrame()
	require.NoError(t, err)
	require.Equal(t, frames[2], f)
}

func TestPool_FreeErrors(t *testing.T) {
	p := NewPool(8)
	require.ErrorIs(t, p.FreeFrame(Frame{Number: 8}), ErrBadFrame)
	require.ErrorIs(t, p.FreeFrame(Frame{Number: 3}), ErrNotAllocated)

	f, err := p.AllocateFrame()
	require.NoError(t, err)
	require.NoError(t, p.FreeFrame(f))
	require.ErrorIs(t, p.FreeFrame(f), ErrNotAllocated)
}

func TestPool_Empty(t *testing.T) {
	p := NewPool(0)
	_, err := p.AllocateFrame()
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestPool_BytesAndZero(t *testing.T) {
	p := NewPool(2)
	f, err := p.AllocateFrame()
	require.NoError(t, err)

	b := p.Bytes(f)
	require.Len(t, b, format.PageSize)
	b[10] = 0xAA
	require.Equal(t, byte(0xAA), p.Bytes(f)[10], "frame contents must persist")

	p.Zero(f)
	require.Equal(t, byte(0), p.Bytes(f)[10])
	require.Equal(t, uintptr(f.Number)*format.PageSize, f.Addr())
}

func TestPool_Concurrent(t *testing.T) {
	const workers, each = 8, 64
	p := NewPool(workers * each)

	var mu sync.Mutex
	seen := make(map[uint32]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				f, err := p.AllocateFrame()
				if err != nil {
					t.Errorf("AllocateFrame: %v", err)
					return
				}
				mu.Lock()
				if seen[f.Number] {
					t.Errorf("duplicate frame %v", f)
				}
				seen[f.Number] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*each)
	require.Equal(t, 0, p.Free())
}

package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobal(t *testing.T) {
	t.Setenv("HEAPKIT_FRAMES", "1024")

	require.Same(t, Global(), Global())

	p := Alloc(64, 16)
	require.NotZero(t, p)
	require.Zero(t, p%16)
	require.True(t, Global().Bounds().Contains(p))

	Free(p, 64, 16)
	require.Zero(t, Global().Stats().Used)
}

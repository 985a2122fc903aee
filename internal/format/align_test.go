package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 16, 16},
		{4097, PageSize, 2 * PageSize},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestAlignPage(t *testing.T) {
	require.Equal(t, uintptr(0), AlignPage(0))
	require.Equal(t, uintptr(PageSize), AlignPage(1))
	require.Equal(t, uintptr(PageSize), AlignPage(PageSize))
	require.Equal(t, uintptr(2*PageSize), AlignPage(PageSize+1))
	require.Equal(t, uintptr(256), Pages(1<<20))
}

func TestAlignGrowthUnit(t *testing.T) {
	require.Equal(t, uintptr(UserHeapGrowthUnit), AlignGrowthUnit(100))
	require.Equal(t, uintptr(UserHeapGrowthUnit), AlignGrowthUnit(UserHeapGrowthUnit))
	require.Equal(t, uintptr(4<<20), AlignGrowthUnit(3<<20))
}

func TestAlignBlock(t *testing.T) {
	require.Equal(t, uintptr(MinBlockSize), AlignBlock(1))
	require.Equal(t, uintptr(MinBlockSize), AlignBlock(16))
	require.Equal(t, uintptr(24), AlignBlock(17))
	require.Equal(t, uintptr(4096), AlignBlock(4096))
}

func TestAlignDownAndPowerOfTwo(t *testing.T) {
	require.Equal(t, uintptr(0x1000), AlignDown(0x1fff, PageSize))
	require.True(t, IsAligned(0x2000, PageSize))
	require.False(t, IsAligned(0x2001, PageSize))
	require.True(t, IsPowerOfTwo(1))
	require.True(t, IsPowerOfTwo(4096))
	require.False(t, IsPowerOfTwo(0))
	require.False(t, IsPowerOfTwo(24))
}

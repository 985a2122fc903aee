package humanize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	require.Equal(t, "0", Count(0))
	require.Equal(t, "1,048,576", Count(uintptr(1<<20)))
	require.Equal(t, "131,072", Count(int64(131072)))
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{100, "100 B"},
		{4096, "4 KiB"},
		{1536, "1.5 KiB"},
		{2 << 20, "2 MiB"},
		{512 << 20, "512 MiB"},
		{3 << 30, "3 GiB"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Bytes(tt.in))
	}
}

func TestPercent(t *testing.T) {
	require.Equal(t, "50.0%", Percent(1, 2))
	require.Equal(t, "0.0%", Percent(5, 0))
}

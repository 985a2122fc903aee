package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	saved := L
	t.Cleanup(func() { L = saved })

	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out, JSON: true, Level: slog.LevelDebug})
	Debug("EXTEND", "top", 0x2000)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
	require.Equal(t, "EXTEND", rec["msg"])
	require.Equal(t, float64(0x2000), rec["top"])
}

func TestInitDisabledDiscards(t *testing.T) {
	saved := L
	t.Cleanup(func() { L = saved })

	var out bytes.Buffer
	Init(Options{Enabled: true, Output: &out})
	Init(Options{Enabled: false})
	Error("dropped")
	require.Zero(t, out.Len())
}

func TestOr(t *testing.T) {
	require.Same(t, L, Or(nil))
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.Same(t, l, Or(l))
}

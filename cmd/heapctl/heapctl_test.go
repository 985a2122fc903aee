package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/fatal"
	"github.com/joshuapare/heapkit/internal/format"
)

// runCmd executes heapctl with args against the simulated address space
// and returns its output. Flags keep their values between runs, so every
// flag a test touches is reset afterwards.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() {
		out = prev
		verbose, quiet, jsonOut, simOnly = false, false, false, false
		stressHeap, stressWorkers, stressOps, stressMaxSize = "both", 8, 10000, 4096
		layoutAllocs, layoutMaxSize, layoutReserved = 64, 16<<10, format.KernelHeapReservation
	})

	rootCmd.SetArgs(append([]string{"--sim", "--frames", "4096"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestScenarioKernel(t *testing.T) {
	output, err := runCmd(t, "scenario", "kernel")
	require.NoError(t, err)
	require.Contains(t, output, "Scenario kernel (simulated address space)")
	require.Contains(t, output, "(expanded)")
	require.Contains(t, output, "grow calls:  1")
}

func TestScenarioKernelJSON(t *testing.T) {
	output, err := runCmd(t, "scenario", "kernel", "--json")
	require.NoError(t, err)

	var res ScenarioResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	require.Len(t, res.Steps, 4)
	require.False(t, res.Steps[0].Grew)
	require.True(t, res.Steps[1].Grew)
	require.Equal(t, "free", res.Steps[2].Op)
	require.Equal(t, res.Steps[0].Addr, res.Steps[3].Addr)
	require.Equal(t, 1, res.Stats.GrowCalls)
}

func TestScenarioUser(t *testing.T) {
	output, err := runCmd(t, "scenario", "user", "--json")
	require.NoError(t, err)

	var res ScenarioResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	require.Len(t, res.Steps, 2)
	require.True(t, res.Steps[0].Grew)
	require.True(t, res.Steps[1].Grew)
	require.Equal(t, 2, res.Stats.GrowCalls)
	require.Equal(t, uintptr(3*format.UserHeapGrowthUnit), res.Stats.Size())
}

func TestStress(t *testing.T) {
	output, err := runCmd(t, "stress", "--workers", "4", "--ops", "300", "--max-size", "1024", "--json")
	require.NoError(t, err)

	var results []StressResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, 2)
	require.Equal(t, "kernel", results[0].Heap)
	require.Equal(t, "user", results[1].Heap)
	for _, r := range results {
		require.Positive(t, r.Report.Allocs, r.Heap)
		require.Zero(t, r.Report.Failures, r.Heap)
		require.Zero(t, r.Stats.Used, r.Heap)
	}
}

func TestStressUnknownHeap(t *testing.T) {
	_, err := runCmd(t, "stress", "--heap", "nope")
	require.ErrorContains(t, err, `unknown heap "nope"`)
}

func TestLayout(t *testing.T) {
	output, err := runCmd(t, "layout", "--allocs", "32", "--max-size", "4096", "--json")
	require.NoError(t, err)

	var l Layout
	require.NoError(t, json.Unmarshal([]byte(output), &l))
	require.Equal(t, "simulated", l.Backend)
	require.Equal(t, uintptr(format.KernelHeapReservation), l.Reservation.Len)
	require.Equal(t, l.Reservation.Start, l.Heap.Start)
	require.Len(t, l.Mapped, 1)
	require.Equal(t, l.Heap, l.Mapped[0])
	require.Len(t, l.Guarded, 1)
	require.Equal(t, l.Heap.End(), l.Guarded[0].Start)
	require.Equal(t, l.Reservation.End(), l.Guarded[0].End())
	require.Equal(t, int(l.Heap.Len/format.PageSize), l.FramesUsed)
}

func TestLayoutText(t *testing.T) {
	output, err := runCmd(t, "layout", "--allocs", "4")
	require.NoError(t, err)
	require.Contains(t, output, "Kernel heap layout (simulated address space)")
	require.Contains(t, output, "guarded:")
	require.Contains(t, output, "512 MiB")
}

func TestInfo(t *testing.T) {
	output, err := runCmd(t, "info")
	require.NoError(t, err)
	require.Contains(t, output, "4,096")
	require.Contains(t, output, "2 MiB")
	require.Contains(t, output, "0x7f")
}

func TestExitCode(t *testing.T) {
	oom := &fatal.Error{Kind: fatal.OutOfMemory, Op: "alloc", Size: 0x1000}
	require.Equal(t, fatal.ExitCode, exitCode(oom))
	require.Equal(t, fatal.ExitCode, exitCode(fmt.Errorf("stress: %w", errors.Join(oom))))
	require.Equal(t, 1, exitCode(errors.New("unknown heap")))
}

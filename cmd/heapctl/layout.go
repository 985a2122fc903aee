package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/humanize"
	"github.com/joshuapare/heapkit/mm/addr"
)

var (
	layoutAllocs   int
	layoutMaxSize  uint64
	layoutReserved uint64
	layoutSeed     int64
)

func init() {
	cmd := newLayoutCmd()
	cmd.Flags().IntVar(&layoutAllocs, "allocs", 64, "Number of allocations to make first")
	cmd.Flags().Uint64Var(&layoutMaxSize, "max-size", 16<<10, "Largest allocation in bytes")
	cmd.Flags().Uint64Var(&layoutReserved, "reserve", format.KernelHeapReservation, "Kernel heap reservation in bytes")
	cmd.Flags().Int64Var(&layoutSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the mapped and guarded ranges of a kernel heap",
		Long: `The layout command allocates a random set of blocks from a fresh
kernel heap and prints its reservation, the mapped prefix, the guard range
behind it and the frames in use.

Example:
  heapctl layout --allocs 200
  heapctl layout --reserve 1048576 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout()
		},
	}
}

// Layout describes a kernel heap inside its address space.
type Layout struct {
	Backend     string       `json:"backend"`
	Reservation addr.Range   `json:"reservation"`
	Heap        addr.Range   `json:"heap"`
	Mapped      []addr.Range `json:"mapped"`
	Guarded     []addr.Range `json:"guarded"`
	FramesUsed  int          `json:"frames_used"`
	FramesTotal int          `json:"frames_total"`
	Used        uintptr      `json:"used"`
}

func runLayout() error {
	m := newMachine()
	defer m.Close()

	in, ok := m.inspector()
	if !ok {
		return fmt.Errorf("%s address space cannot be inspected", m.backend())
	}

	k := m.kernelHeap(uintptr(layoutReserved), false)
	rng := rand.New(rand.NewSource(layoutSeed))
	for i := 0; i < layoutAllocs; i++ {
		size := 1 + uintptr(rng.Int63n(int64(max(layoutMaxSize, 1))))
		if k.Alloc(size, 8) == 0 {
			printVerbose("allocation %d of %s failed\n", i, humanize.Bytes(size))
			break
		}
	}
	if err := m.err(); err != nil {
		return err
	}

	l := Layout{
		Backend:     m.backend(),
		Reservation: k.Reservation(),
		Heap:        k.Bounds(),
		Mapped:      in.Mapped(),
		Guarded:     in.Guarded(),
		FramesUsed:  m.pool.Total() - m.pool.Free(),
		FramesTotal: m.pool.Total(),
		Used:        k.Stats().Used,
	}
	if jsonOut {
		return printJSON(l)
	}

	printInfo("\nKernel heap layout (%s address space)\n\n", l.Backend)
	printInfo("  reservation: %v  %s\n", l.Reservation, humanize.Bytes(l.Reservation.Len))
	printInfo("  heap:        %v  %s, %s used (%s)\n",
		l.Heap, humanize.Bytes(l.Heap.Len), humanize.Bytes(l.Used), humanize.Percent(l.Used, l.Heap.Len))
	printInfo("  frames:      %s of %s\n\n", humanize.Count(l.FramesUsed), humanize.Count(l.FramesTotal))
	printRanges("mapped", l.Mapped)
	printRanges("guarded", l.Guarded)
	return nil
}

func printRanges(label string, rs []addr.Range) {
	printInfo("  %s:\n", label)
	if len(rs) == 0 {
		printInfo("    (none)\n")
	}
	for _, r := range rs {
		printInfo("    %v  %s\n", r, humanize.Bytes(r.Len))
	}
}

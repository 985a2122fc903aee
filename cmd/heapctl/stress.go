package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/humanize"
	"github.com/joshuapare/heapkit/internal/stress"
)

var (
	stressHeap    string
	stressWorkers int
	stressOps     int
	stressMaxSize uint64
	stressSeed    int64
	stressPoison  bool
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().StringVar(&stressHeap, "heap", "both", "Heap to stress: kernel, user or both")
	cmd.Flags().IntVar(&stressWorkers, "workers", 8, "Concurrent workers per heap")
	cmd.Flags().IntVar(&stressOps, "ops", 10000, "Operations per worker")
	cmd.Flags().Uint64Var(&stressMaxSize, "max-size", 4096, "Largest request in bytes")
	cmd.Flags().Int64Var(&stressSeed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&stressPoison, "poison", false, "Poison freed kernel memory with 0x7F")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent allocate/free workloads and check for overlaps",
		Long: `The stress command runs random allocate/free workloads from several
goroutines, stamps every live block and verifies no two live blocks overlap
and no block is corrupted before it is freed.

Example:
  heapctl stress
  heapctl stress --heap kernel --workers 16 --ops 50000 --poison`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
}

// StressResult is the outcome of stressing one heap.
type StressResult struct {
	Heap   string        `json:"heap"`
	Report stress.Report `json:"report"`
	Stats  heap.Stats    `json:"stats"`
}

func runStress(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var kernelRun, userRun bool
	switch stressHeap {
	case "kernel":
		kernelRun = true
	case "user":
		userRun = true
	case "both":
		kernelRun, userRun = true, true
	default:
		return fmt.Errorf("unknown heap %q: want kernel, user or both", stressHeap)
	}

	m := newMachine()
	defer m.Close()

	gateCtx, stopGate := context.WithCancel(ctx)
	defer stopGate()
	gates, gateCtx := errgroup.WithContext(gateCtx)

	cfg := stress.Config{
		Workers: stressWorkers,
		Ops:     stressOps,
		MaxSize: uintptr(stressMaxSize),
		Aligns:  []uintptr{8, 16, 64, format.PageSize},
		Seed:    stressSeed,
	}

	var (
		mu      sync.Mutex
		results []StressResult
	)
	run := func(name string, a statser, c stress.Config) func() error {
		return func() error {
			printVerbose("stressing %s heap\n", name)
			rep, err := stress.Run(ctx, a, c)
			if err != nil {
				return fmt.Errorf("%s heap: %w", name, err)
			}
			mu.Lock()
			results = append(results, StressResult{Heap: name, Report: rep, Stats: a.Stats()})
			mu.Unlock()
			return nil
		}
	}

	var g errgroup.Group
	if kernelRun {
		k := m.kernelHeap(0, stressPoison)
		c := cfg
		c.Memory = k.Memory()
		g.Go(run("kernel", k, c))
	}
	if userRun {
		u, ph := m.userHeap(gateCtx, gates, format.DefaultProcessHeapLimit)
		c := cfg
		c.Memory = ph.Memory()
		c.Seed += 1 << 32
		g.Go(run("user", u, c))
	}
	err := g.Wait()
	stopGate()
	if werr := gates.Wait(); werr != nil && err == nil {
		err = werr
	}
	if ferr := m.err(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	slices.SortFunc(results, func(a, b StressResult) int { return strings.Compare(a.Heap, b.Heap) })
	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		printInfo("\n%s heap (%s address space)\n", r.Heap, m.backend())
		printInfo("  allocs:    %s\n", humanize.Count(r.Report.Allocs))
		printInfo("  frees:     %s\n", humanize.Count(r.Report.Frees))
		printInfo("  failures:  %s\n", humanize.Count(r.Report.Failures))
		printInfo("  peak live: %s\n\n", humanize.Count(r.Report.PeakLive))
		printInfo("%s", r.Stats)
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/humanize"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Replay a reference allocation scenario",
	}
	cmd.AddCommand(newKernelScenarioCmd(), newUserScenarioCmd())
	rootCmd.AddCommand(cmd)
}

// Step is one allocator call of a scenario.
type Step struct {
	Op      string  `json:"op"`
	Size    uintptr `json:"size"`
	Addr    uintptr `json:"addr"`
	HeapTop uintptr `json:"heap_top"`
	Grew    bool    `json:"grew"`
}

// ScenarioResult is the outcome of a scenario run.
type ScenarioResult struct {
	Name  string     `json:"name"`
	Steps []Step     `json:"steps"`
	Stats heap.Stats `json:"stats"`
}

// statser is an allocator that reports statistics.
type statser interface {
	heap.Allocator
	Stats() heap.Stats
}

type recorder struct {
	a   statser
	res ScenarioResult
}

func (r *recorder) alloc(size uintptr) (uintptr, error) {
	before := r.a.Stats()
	p := r.a.Alloc(size, 8)
	after := r.a.Stats()
	r.res.Steps = append(r.res.Steps, Step{
		Op: "alloc", Size: size, Addr: p, HeapTop: after.Top, Grew: after.GrowCalls > before.GrowCalls,
	})
	if p == 0 {
		return 0, fmt.Errorf("alloc of %s failed", humanize.Bytes(size))
	}
	return p, nil
}

func (r *recorder) free(p, size uintptr) {
	r.a.Free(p, size, 8)
	r.res.Steps = append(r.res.Steps, Step{Op: "free", Size: size, Addr: p, HeapTop: r.a.Stats().Top})
}

func (r *recorder) last() Step {
	return r.res.Steps[len(r.res.Steps)-1]
}

func newKernelScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kernel",
		Short: "Allocate 4KiB, 1MiB, free 4KiB and allocate 4KiB again on a kernel heap",
		Long: `Replays the kernel heap scenario: the first 4KiB fits on the single
mapped page, 1MiB forces an expansion of about 256 pages, and the final
4KiB reuses the freed block without expanding.

Example:
  heapctl scenario kernel
  heapctl scenario kernel --sim --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKernelScenario()
		},
	}
}

func runKernelScenario() error {
	m := newMachine()
	defer m.Close()

	r := &recorder{a: m.kernelHeap(0, false), res: ScenarioResult{Name: "kernel"}}
	steps := func() error {
		small, err := r.alloc(format.PageSize)
		if err != nil {
			return err
		}
		if r.last().Grew {
			return fmt.Errorf("first 4KiB expanded the heap")
		}
		if _, err := r.alloc(1 << 20); err != nil {
			return err
		}
		if !r.last().Grew {
			return fmt.Errorf("1MiB did not expand the heap")
		}
		r.free(small, format.PageSize)
		again, err := r.alloc(format.PageSize)
		if err != nil {
			return err
		}
		if again != small || r.last().Grew {
			return fmt.Errorf("freed 4KiB block was not reused")
		}
		return nil
	}
	err := steps()
	if ferr := m.err(); ferr != nil {
		return ferr
	}
	r.res.Stats = r.a.Stats()
	if perr := printScenario(r.res, m.backend()); perr != nil {
		return perr
	}
	return err
}

func newUserScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Allocate 100 bytes then 3MiB on an empty userspace heap",
		Long: `Replays the userspace heap scenario: the heap starts empty, 100 bytes
triggers the first resize (setting the base), and 3MiB triggers a second
resize at the same base.

Example:
  heapctl scenario user`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserScenario(cmd.Context())
		},
	}
}

func runUserScenario(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m := newMachine()
	defer m.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	a, ph := m.userHeap(ctx, g, format.DefaultProcessHeapLimit)

	r := &recorder{a: a, res: ScenarioResult{Name: "user"}}
	steps := func() error {
		if _, err := r.alloc(100); err != nil {
			return err
		}
		first := r.a.Stats()
		if first.Size() < format.UserHeapGrowthUnit || first.Bottom != ph.Base() {
			return fmt.Errorf("first resize gave %s at %#x", humanize.Bytes(first.Size()), first.Bottom)
		}
		if _, err := r.alloc(3 << 20); err != nil {
			return err
		}
		second := r.a.Stats()
		if second.Bottom != first.Bottom {
			return fmt.Errorf("heap moved from %#x to %#x", first.Bottom, second.Bottom)
		}
		if second.Size() < 4<<20 || second.Size() < first.Size() {
			return fmt.Errorf("second resize gave %s", humanize.Bytes(second.Size()))
		}
		return nil
	}
	err := steps()
	cancel()
	if werr := g.Wait(); werr != nil {
		return werr
	}
	r.res.Stats = r.a.Stats()
	if perr := printScenario(r.res, m.backend()); perr != nil {
		return perr
	}
	return err
}

func printScenario(res ScenarioResult, backend string) error {
	if jsonOut {
		return printJSON(res)
	}
	printInfo("\nScenario %s (%s address space)\n\n", res.Name, backend)
	for i, s := range res.Steps {
		grew := ""
		if s.Grew {
			grew = "  (expanded)"
		}
		printInfo("  %d. %-5s %10s at %#x, top %#x%s\n", i+1, s.Op, humanize.Bytes(s.Size), s.Addr, s.HeapTop, grew)
	}
	printInfo("\n%s", res.Stats)
	return nil
}

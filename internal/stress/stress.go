// Package stress drives concurrent allocate/free workloads against an
// allocator and checks that no two live blocks ever overlap.
package stress

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/mm/addr"
	"github.com/joshuapare/heapkit/mm/vm"
)

var (
	// ErrOverlap indicates the allocator handed out a block overlapping a live one.
	ErrOverlap = errors.New("stress: overlapping live blocks")

	// ErrCorrupted indicates a block's stamp changed while it was live.
	ErrCorrupted = errors.New("stress: live block corrupted")
)

// Config controls a workload.
type Config struct {
	Workers   int       // concurrent goroutines (default 4)
	Ops       int       // operations per worker (default 1000)
	MinSize   uintptr   // smallest request (default 1)
	MaxSize   uintptr   // largest request (default 4096)
	Aligns    []uintptr // alignments to pick from (default 8)
	FreeRatio float64   // probability an op frees instead of allocating (default 0.4)
	Seed      int64     // base seed; worker i uses Seed+i
	Memory    vm.Memory // when set, blocks are stamped and verified before free
}

// Report summarises a run.
type Report struct {
	Allocs   int
	Frees    int
	Failures int // Alloc returned 0
	PeakLive int // most blocks live at once
}

type block struct {
	r     addr.Range
	size  uintptr
	align uintptr
	stamp uint64
}

// tracker is the set of live blocks across all workers.
type tracker struct {
	mu   sync.Mutex
	live []addr.Range // sorted by start
	peak int
}

func (t *tracker) add(r addr.Range) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.live), func(i int) bool { return t.live[i].Start >= r.Start })
	if i > 0 && t.live[i-1].Overlaps(r) {
		return fmt.Errorf("%w: %v and %v", ErrOverlap, t.live[i-1], r)
	}
	if i < len(t.live) && t.live[i].Overlaps(r) {
		return fmt.Errorf("%w: %v and %v", ErrOverlap, r, t.live[i])
	}
	t.live = append(t.live, addr.Range{})
	copy(t.live[i+1:], t.live[i:])
	t.live[i] = r
	t.peak = max(t.peak, len(t.live))
	return nil
}

func (t *tracker) remove(r addr.Range) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.live), func(i int) bool { return t.live[i].Start >= r.Start })
	if i < len(t.live) && t.live[i] == r {
		t.live = append(t.live[:i], t.live[i+1:]...)
	}
}

func (cfg *Config) withDefaults() Config {
	c := *cfg
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Ops <= 0 {
		c.Ops = 1000
	}
	if c.MinSize == 0 {
		c.MinSize = 1
	}
	if c.MaxSize < c.MinSize {
		c.MaxSize = max(c.MinSize, 4096)
	}
	if len(c.Aligns) == 0 {
		c.Aligns = []uintptr{8}
	}
	if c.FreeRatio <= 0 || c.FreeRatio >= 1 {
		c.FreeRatio = 0.4
	}
	return c
}

// Run executes the workload. It returns the first overlap or corruption
// found; allocation failures are only counted.
func Run(ctx context.Context, a heap.Allocator, cfg Config) (Report, error) {
	c := cfg.withDefaults()
	t := &tracker{}

	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < c.Workers; w++ {
		g.Go(func() error {
			var local Report
			err := worker(ctx, a, &c, t, w, &local)
			mu.Lock()
			report.Allocs += local.Allocs
			report.Frees += local.Frees
			report.Failures += local.Failures
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	report.PeakLive = t.peak
	return report, err
}

func worker(ctx context.Context, a heap.Allocator, c *Config, t *tracker, id int, rep *Report) error {
	rng := rand.New(rand.NewSource(c.Seed + int64(id)))
	var live []block

	release := func(i int) error {
		b := live[i]
		if err := verify(c.Memory, b); err != nil {
			return err
		}
		t.remove(b.r)
		a.Free(b.r.Start, b.size, b.align)
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		rep.Frees++
		return nil
	}

	for op := 0; op < c.Ops; op++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(live) > 0 && rng.Float64() < c.FreeRatio {
			if err := release(rng.Intn(len(live))); err != nil {
				return err
			}
			continue
		}

		size := c.MinSize + uintptr(rng.Int63n(int64(c.MaxSize-c.MinSize+1)))
		align := c.Aligns[rng.Intn(len(c.Aligns))]
		p := a.Alloc(size, align)
		if p == 0 {
			rep.Failures++
			continue
		}
		rep.Allocs++
		if p%align != 0 {
			return fmt.Errorf("stress: %#x not aligned to %d", p, align)
		}
		b := block{r: addr.New(p, size), size: size, align: align, stamp: uint64(id)<<32 | uint64(op)}
		if err := t.add(b.r); err != nil {
			return err
		}
		if err := stamp(c.Memory, b); err != nil {
			return err
		}
		live = append(live, b)
	}

	for len(live) > 0 {
		if err := release(len(live) - 1); err != nil {
			return err
		}
	}
	return nil
}

// stampOffsets returns where a block's stamp lives: its first word, and its
// last word once the block is large enough that the two do not overlap.
func stampOffsets(b block) []uintptr {
	switch {
	case b.size < 8:
		return nil
	case b.size < 16:
		return []uintptr{b.r.Start}
	default:
		return []uintptr{b.r.Start, b.r.End() - 8}
	}
}

// stamp writes the block's stamp at its start and end.
func stamp(mem vm.Memory, b block) error {
	if mem == nil {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], b.stamp)
	for _, at := range stampOffsets(b) {
		if err := mem.WriteAt(buf[:], at); err != nil {
			return err
		}
	}
	return nil
}

func verify(mem vm.Memory, b block) error {
	if mem == nil {
		return nil
	}
	var buf [8]byte
	for _, at := range stampOffsets(b) {
		if err := mem.ReadAt(buf[:], at); err != nil {
			return err
		}
		if got := binary.LittleEndian.Uint64(buf[:]); got != b.stamp {
			return fmt.Errorf("%w: %v at %#x: got %#x want %#x", ErrCorrupted, b.r, at, got, b.stamp)
		}
	}
	return nil
}

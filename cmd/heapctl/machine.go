package main

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap/fatal"
	"github.com/joshuapare/heapkit/heap/kernel"
	"github.com/joshuapare/heapkit/heap/user"
	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
	"github.com/joshuapare/heapkit/svc"
)

// machine is one frame pool and address space shared by the heaps a
// command builds. Fatal heap failures are collected instead of exiting.
type machine struct {
	pool  *frame.Pool
	space vm.AddressSpace

	mu     sync.Mutex
	fatals []*fatal.Error
}

func newMachine() *machine {
	if simOnly {
		pool := frame.NewPool(frames)
		return &machine{pool: pool, space: vm.NewSim(pool)}
	}
	pool := frame.NewPlatformPool(frames)
	return &machine{pool: pool, space: vm.New(pool)}
}

func (m *machine) backend() string {
	switch m.space.(type) {
	case *vm.Sim:
		return "simulated"
	default:
		return "mmap"
	}
}

func (m *machine) recordFatal(err *fatal.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatals = append(m.fatals, err)
	printVerbose("fatal: %v\n", err)
}

// err returns the fatal failures seen so far.
func (m *machine) err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := make([]error, len(m.fatals))
	for i, e := range m.fatals {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (m *machine) kernelHeap(reserved uintptr, poison bool) *kernel.Allocator {
	return kernel.New(m.space, m.pool, &kernel.Config{
		ReservedSize: reserved,
		PoisonOnFree: poison,
		Fatal:        m.recordFatal,
	})
}

// userHeap starts a resize gate in g and returns a userspace heap behind it.
// The gate stops when ctx is cancelled.
func (m *machine) userHeap(ctx context.Context, g *errgroup.Group, limit uintptr) (*user.Allocator, *svc.ProcessHeap) {
	ph := svc.NewProcessHeap(m.space, m.pool, &svc.HeapConfig{Limit: limit})
	gate := svc.NewGate(ph)
	g.Go(func() error {
		if err := gate.Serve(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return user.New(gate.Client(), nil), ph
}

func (m *machine) inspector() (vm.Inspector, bool) {
	in, ok := m.space.(vm.Inspector)
	return in, ok
}

func (m *machine) Close() error {
	var errs []error
	if c, ok := m.space.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, m.pool.Close())
	return errors.Join(errs...)
}

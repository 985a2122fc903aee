package svc

import (
	"context"
	"sync"

	"github.com/joshuapare/heapkit/mm/frame"
	"github.com/joshuapare/heapkit/mm/vm"
)

type request struct {
	total uintptr
	reply chan<- response
}

type response struct {
	base uintptr
	err  error
}

// Gate serves resize calls for one process heap. Requests are handled one
// at a time, in arrival order.
type Gate struct {
	heap *ProcessHeap
	reqs chan request

	closeOnce sync.Once
	done      chan struct{}
}

// NewGate creates a gate for h. Nothing is served until Serve runs.
func NewGate(h *ProcessHeap) *Gate {
	return &Gate{
		heap: h,
		reqs: make(chan request),
		done: make(chan struct{}),
	}
}

// Serve answers requests until ctx is cancelled. Pending and later calls
// then fail with ErrSessionClosed.
func (g *Gate) Serve(ctx context.Context) error {
	defer g.close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-g.reqs:
			base, err := g.heap.SetHeapSize(req.total)
			req.reply <- response{base: base, err: err}
		}
	}
}

func (g *Gate) close() {
	g.closeOnce.Do(func() { close(g.done) })
}

// Heap returns the heap served by the gate.
func (g *Gate) Heap() *ProcessHeap {
	return g.heap
}

// Client returns the process end of the gate.
func (g *Gate) Client() *Client {
	return &Client{gate: g}
}

// Client issues resize calls through a Gate.
type Client struct {
	gate *Gate
}

// SetHeapSize asks the kernel to resize the heap to total bytes and blocks
// until it answers. It returns the heap base.
func (c *Client) SetHeapSize(total uintptr) (uintptr, error) {
	reply := make(chan response, 1)
	select {
	case c.gate.reqs <- request{total: total, reply: reply}:
	case <-c.gate.done:
		return 0, ErrSessionClosed
	}
	// Serve always replies to a request it has received.
	r := <-reply
	return r.base, r.err
}

var defaultClient = sync.OnceValue(func() *Client {
	g := NewGate(NewProcessHeap(vm.Default(), frame.Default(), nil))
	go g.Serve(context.Background()) //nolint:errcheck // serves for the life of the process
	return g.Client()
})

// DefaultClient returns the resize call of this process, served by a kernel
// gate over the default address space.
func DefaultClient() *Client {
	return defaultClient()
}

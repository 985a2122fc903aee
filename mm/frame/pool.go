package frame

import (
	"fmt"
	"math/bits"
	"sync"
)

// Pool is a bitmap frame allocator over a Store.
type Pool struct {
	mu     sync.Mutex
	store  Store
	bitmap []uint64 // 1 = frame in use
	total  int
	free   int
	hint   int // word index where the next search starts
}

// NewPool creates a pool of n frames backed by Go memory.
func NewPool(n int) *Pool {
	return NewPoolWithStore(newMemStore(n))
}

// NewPoolWithStore creates a pool managing every frame of store.
func NewPoolWithStore(store Store) *Pool {
	n := store.Frames()
	return &Pool{
		store:  store,
		bitmap: make([]uint64, (n+63)/64),
		total:  n,
		free:   n,
	}
}

// AllocateFrame returns the lowest-numbered free frame at or after the
// search hint, wrapping around once.
func (p *Pool) AllocateFrame() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free == 0 {
		return Frame{}, ErrOutOfMemory
	}

	words := len(p.bitmap)
	for i := 0; i < words; i++ {
		w := (p.hint + i) % words
		avail := ^p.bitmap[w]
		if w == words-1 {
			avail &= p.lastWordMask()
		}
		if avail == 0 {
			continue
		}
		bit := bits.TrailingZeros64(avail)
		p.bitmap[w] |= 1 << bit
		p.free--
		p.hint = w
		return Frame{Number: uint32(w*64 + bit)}, nil
	}

	// free > 0 but no bit found: the bitmap and the counter disagree.
	return Frame{}, fmt.Errorf("%w: bitmap exhausted with %d frames free", ErrOutOfMemory, p.free)
}

// FreeFrame marks f as unused.
func (p *Pool) FreeFrame(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := int(f.Number)
	if n >= p.total {
		return fmt.Errorf("%w: %d (pool has %d)", ErrBadFrame, n, p.total)
	}
	w, bit := n/64, uint(n%64)
	if p.bitmap[w]&(1<<bit) == 0 {
		return fmt.Errorf("%w: %v", ErrNotAllocated, f)
	}
	p.bitmap[w] &^= 1 << bit
	p.free++
	if w < p.hint {
		p.hint = w
	}
	return nil
}

// Bytes returns the physical contents of f.
func (p *Pool) Bytes(f Frame) []byte {
	return p.store.Frame(f)
}

// Zero clears the contents of f.
func (p *Pool) Zero(f Frame) {
	clear(p.store.Frame(f))
}

// Store returns the physical memory behind the pool.
func (p *Pool) Store() Store {
	return p.store
}

// Total returns the number of frames managed by the pool.
func (p *Pool) Total() int {
	return p.total
}

// Free returns the number of frames currently available.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free
}

// Close releases the backing store.
func (p *Pool) Close() error {
	return p.store.Close()
}

// lastWordMask masks off bitmap bits past the end of the pool.
func (p *Pool) lastWordMask() uint64 {
	rem := p.total % 64
	if rem == 0 {
		return ^uint64(0)
	}
	return (1 << uint(rem)) - 1
}

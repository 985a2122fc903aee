package frame

import (
	"sync"

	"github.com/joshuapare/heapkit/internal/format"
)

// memStore keeps frames in Go memory, creating each one on first touch so
// large pools cost nothing until used.
type memStore struct {
	mu     sync.Mutex
	frames [][]byte
}

func newMemStore(n int) *memStore {
	return &memStore{frames: make([][]byte, n)}
}

func (s *memStore) Frame(f Frame) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.frames[f.Number]
	if b == nil {
		b = make([]byte, format.PageSize)
		s.frames[f.Number] = b
	}
	return b
}

func (s *memStore) Frames() int {
	return len(s.frames)
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
	return nil
}

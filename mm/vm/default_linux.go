//go:build linux

package vm

import "github.com/joshuapare/heapkit/mm/frame"

func newPlatform(pool *frame.Pool) (AddressSpace, error) {
	return NewMmap(pool.Store())
}

// Package kernel implements the kernel's global heap allocator.
//
// The heap lives in a 512MB virtual reservation made on first use. Only the
// first page is mapped at that point; the rest is guarded so a stray access
// past the top faults instead of corrupting memory. When the free list
// cannot satisfy a request the heap grows in place: one physical frame is
// mapped per new page and the free list is extended over them.
//
// Growing past the reservation or running out of physical frames is fatal.
//
// # Locking
//
// The heap mutex guards the free list. Expansion runs in two phases: the
// bounds are read under the mutex, the frames are mapped with it released,
// and the new top is committed under it again. A second mutex serialises
// expanders so two of them never map the same pages. Allocations that find
// room proceed while another goroutine is expanding.
//
// # Debugging
//
// Build with -tags heapdebug to poison freed memory with 0x7F by default,
// and set HEAPKIT_LOG_ALLOC=1 to log every ALLOC, FREE and EXTEND.
package kernel

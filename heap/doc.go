// Package heap defines the contract shared by the kernel and userspace
// allocators.
//
// # Overview
//
// Every dynamic allocation in a process goes through exactly one Allocator:
//
//   - kernel.Allocator: backed by a 512MB reservation of the kernel address
//     space, mapped one frame at a time as it grows.
//   - user.Allocator: backed by a heap whose size is set by the kernel
//     through the heap resize call, grown in 2MB steps.
//
// Both wrap a core.Heap (first-fit free list) in a mutex and perform at most
// one growth attempt per Alloc call.
//
// # Usage Example
//
//	a := kernel.New(vm.Default(), frame.Default(), nil)
//
//	p := a.Alloc(4096, 8)
//	if p == 0 {
//	    // out of memory
//	}
//	defer a.Free(p, 4096, 8)
//
//	// Or treat out-of-memory as fatal, like the process-wide default:
//	p = heap.MustAlloc(a, 4096, 8)
//
// # Out Of Memory
//
// Alloc returns 0 when memory cannot be produced. MustAlloc is the default
// out-of-memory hook: it turns a 0 into fatal.Terminate, which ends the
// process. Conditions the allocators cannot recover from at all (reservation
// exceeded, no physical frames left) go to fatal.Terminate directly.
//
// # Thread Safety
//
// Allocators are safe for concurrent use.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/heap/core: first-fit free list
//   - github.com/joshuapare/heapkit/heap/fatal: terminal failures
//   - github.com/joshuapare/heapkit/svc: heap resize call
package heap

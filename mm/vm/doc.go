// Package vm is the virtual memory authority: it reserves address ranges,
// maps physical frames into them page by page, and guards ranges so any
// access faults.
//
// # Backends
//
//   - Sim: a deterministic page table over synthetic addresses. Page contents
//     live in the frames of a frame.Pool. Used by tests and non-Linux hosts.
//   - Mmap (Linux): reservations are PROT_NONE anonymous mappings; frames are
//     pages of a memfd mapped over the reservation with MAP_FIXED; guarding
//     replaces pages with fresh PROT_NONE mappings.
//
// Both backends check accesses made through the Memory methods against the
// page table and return a *Fault instead of touching unmapped memory.
//
// # Thread Safety
//
// All AddressSpace methods are safe for concurrent use; each backend
// serialises page-table changes behind its own mutex.
package vm

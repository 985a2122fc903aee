// Package frame implements the physical frame allocator.
//
// # Overview
//
// Physical memory is modelled as a Store holding a fixed number of
// page-sized frames. A Pool hands frames out one at a time from a bitmap and
// fails with ErrOutOfMemory once every frame is in use.
//
// # Stores
//
//   - memStore: frames are Go byte slices created on first touch. Used by
//     tests and on hosts without memfd.
//   - MemfdStore (Linux): frames are pages of an anonymous memfd file. The
//     vm package maps them into reserved address ranges with MAP_FIXED, so a
//     frame really can be mapped at a chosen virtual address.
//
// # Thread Safety
//
// Pool methods are safe for concurrent use. Frame allocation never allocates
// from any heap built on top of the pool.
package frame

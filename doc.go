// Package allocator implements a general-purpose heap allocator over a
// single contiguous, monotonically growing region of process memory.
//
// The allocator obtains memory from the host in large increments by
// reserving a fixed-capacity anonymous mapping up front and advancing a
// break offset within it — the same reserve-then-commit shape real
// allocators use when talking to the OS, just expressed with mmap/mprotect
// instead of brk(2). That increment is subdivided into variable-sized
// chunks, each bounded by a header and a footer (a boundary tag), which
// let the allocator walk forward and backward through memory in O(1).
//
// Two free-index implementations sit behind the same Allocator facade:
//
//   - VariantSortedList keeps one address-ordered doubly linked list of
//     free chunks. Because the list is address-sorted, coalescing a freed
//     chunk with its neighbors only ever touches immediate list neighbors.
//   - VariantSegregatedBins keeps 32 size-class buckets, each a doubly
//     linked list, and coalesces via the boundary tags directly since
//     bucket order carries no address information.
//
// Both variants share the same chunk layout, split/merge algebra, and
// growth policy; they differ only in how free chunks are indexed and
// searched. Neither variant is safe for concurrent use — callers needing
// that must serialize access to an Allocator themselves.
package allocator

package allocator

// freeIndex tracks every free chunk exactly once and governs how free
// space is found, coalesced, and recycled. Both implementations below
// must produce equivalent outcomes: insert always leaves the structure
// free of adjacent free chunks, even though they get
// there by different means — the sorted list exploits list-adjacency,
// the segregated bins consult boundary tags directly.
type freeIndex interface {
	// insert marks c free, coalesces it with any free neighbors, and
	// splices the resulting chunk into the index. It returns that
	// chunk, which may not be c itself if a backward merge occurred.
	insert(c chunk) chunk

	// remove unlinks c from the index. c must currently be indexed.
	remove(c chunk)

	// find performs first-fit search for a chunk with at least
	// required units of payload capacity.
	find(required int32) (chunk, bool)

	// debugWalk returns every indexed chunk's offset and verifies the
	// variant-specific structural invariant (address order for the
	// sorted list, correct bucket membership for the bins). It is used
	// only by the debug-mode heap walk.
	debugWalk() ([]int64, error)
}

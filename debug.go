package allocator

import "github.com/pkg/errors"

// walkHeap checks every heap invariant by walking the heap twice: once
// over physical memory via nextAdjacent, and once over the free index.
// It never affects control flow outside of debug mode (see
// assertValidAfter) — it either returns nil or a wrapped error
// describing exactly which invariant broke.
func (a *Allocator) walkHeap() error {
	start := a.region.start()
	end := a.region.end

	seenFree := make(map[int64]struct{})
	var total int64
	sawFreeLast := false

	for off := start; off < end; {
		c := a.region.chunkAt(off)
		if !c.isValid(start, end) {
			return errors.Errorf("walkHeap: invalid chunk at offset %d", off)
		}
		if c.status() == statusFree {
			if sawFreeLast {
				return errors.Errorf("walkHeap: adjacent free chunks ending at offset %d", off)
			}
			seenFree[off] = struct{}{}
			sawFreeLast = true
		} else {
			sawFreeLast = false
		}

		size := c.totalSize()
		total += size
		off += size
	}

	if total != end-start {
		return errors.Errorf("walkHeap: chunks span %d bytes, heap is %d bytes", total, end-start)
	}

	indexed, err := a.index.debugWalk()
	if err != nil {
		return errors.Wrap(err, "walkHeap")
	}
	if len(indexed) != len(seenFree) {
		return errors.Errorf("walkHeap: free index has %d chunks, heap walk found %d free chunks", len(indexed), len(seenFree))
	}
	for _, off := range indexed {
		if _, ok := seenFree[off]; !ok {
			return errors.Errorf("walkHeap: free index references offset %d, which the heap walk did not see as free", off)
		}
	}

	return nil
}

package allocator

import "github.com/pkg/errors"

// sortedList is free-index variant A: a single doubly-linked list of
// free chunks kept in ascending address order. Address order is what
// makes coalescing O(1): the two chunks that can possibly be adjacent
// to a freshly-inserted chunk are always its immediate list neighbors.
type sortedList struct {
	r    *region
	head int64
}

func newSortedList(r *region) *sortedList {
	return &sortedList{r: r, head: nilOffset}
}

// findNeighbors walks from head to locate the largest free chunk with
// an address below off and the smallest free chunk with an address
// above it.
func (l *sortedList) findNeighbors(off int64) (prevOff, nextOff int64) {
	prevOff = nilOffset
	nextOff = l.head
	for nextOff != nilOffset && nextOff < off {
		prevOff = nextOff
		nextOff = l.r.chunkAt(nextOff).nextFree()
	}
	return prevOff, nextOff
}

func (l *sortedList) insert(c chunk) chunk {
	c.setStatus(statusFree)

	prevOff, nextOff := l.findNeighbors(c.off)
	cur := c.off

	// Backward coalesce: if the list-predecessor is also our memory
	// predecessor, it absorbs c and keeps its own list position.
	if prevOff != nilOffset {
		prev := l.r.chunkAt(prevOff)
		if prev.off+prev.totalSize() == cur {
			grandPrev := prev.prevFree()
			mergeAdjacent(prev, l.r.chunkAt(cur))
			cur = prev.off
			prevOff = grandPrev
		}
	}

	// Forward coalesce: if the list-successor is our memory successor,
	// fold it in and adopt its list position.
	curChunk := l.r.chunkAt(cur)
	if nextOff != nilOffset && curChunk.off+curChunk.totalSize() == nextOff {
		next := l.r.chunkAt(nextOff)
		grandNext := next.nextFree()
		mergeAdjacent(curChunk, next)
		nextOff = grandNext
	}

	final := l.r.chunkAt(cur)
	final.setNextFree(nextOff)
	final.setPrevFree(prevOff)
	final.setFooter()

	if prevOff != nilOffset {
		l.r.chunkAt(prevOff).setNextFree(cur)
	} else {
		l.head = cur
	}
	if nextOff != nilOffset {
		l.r.chunkAt(nextOff).setPrevFree(cur)
	}

	return final
}

func (l *sortedList) remove(c chunk) {
	p := c.prevFree()
	n := c.nextFree()
	if p != nilOffset {
		l.r.chunkAt(p).setNextFree(n)
	} else {
		l.head = n
	}
	if n != nilOffset {
		l.r.chunkAt(n).setPrevFree(p)
	}
}

func (l *sortedList) find(required int32) (chunk, bool) {
	for off := l.head; off != nilOffset; {
		c := l.r.chunkAt(off)
		if c.units() >= required {
			return c, true
		}
		off = c.nextFree()
	}
	return chunk{}, false
}

func (l *sortedList) debugWalk() ([]int64, error) {
	var offs []int64
	prev := nilOffset
	for off := l.head; off != nilOffset; {
		c := l.r.chunkAt(off)
		if c.status() != statusFree {
			return nil, errors.Errorf("sorted free list: non-free chunk at offset %d", off)
		}
		if prev != nilOffset && !(prev < off) {
			return nil, errors.Errorf("sorted free list: not address-ordered at offset %d", off)
		}
		if c.prevFree() != prev {
			return nil, errors.Errorf("sorted free list: broken prev link at offset %d", off)
		}
		offs = append(offs, off)
		prev = off
		off = c.nextFree()
	}
	return offs, nil
}

package allocator

import (
	"math/bits"

	"github.com/pkg/errors"
)

// segregatedBins is free-index variant B: 32 size-class buckets, each a
// doubly linked list of free chunks in unspecified order (insert at
// head). Because bucket order carries no address information,
// coalescing here goes through the boundary tags directly rather than
// through list adjacency.
type segregatedBins struct {
	r    *region
	bins [numBins]int64
}

func newSegregatedBins(r *region) *segregatedBins {
	b := &segregatedBins{r: r}
	for i := range b.bins {
		b.bins[i] = nilOffset
	}
	return b
}

// binIndexForUnits maps a payload size, in chunk units, to one of
// numBins size classes: a small geometric prefix of exact buckets
// followed by power-of-two ranges for everything larger. See
// DESIGN.md for the byte-vs-unit reconciliation this table resolves.
func binIndexForUnits(units int32) int {
	switch {
	case units <= 4:
		return 0
	case units <= 8:
		return 1
	case units <= 16:
		return 2
	case units <= 32:
		return 3
	}
	// 4 + floor(log2(units - 1)), clamped to the last bucket.
	idx := 4 + bits.Len32(uint32(units-1)) - 1
	if idx > numBins-1 {
		idx = numBins - 1
	}
	return idx
}

func (b *segregatedBins) pushHead(idx int, c chunk) {
	c.setNextFree(b.bins[idx])
	c.setPrevFree(nilOffset)
	if b.bins[idx] != nilOffset {
		b.r.chunkAt(b.bins[idx]).setPrevFree(c.off)
	}
	b.bins[idx] = c.off
}

func (b *segregatedBins) insert(c chunk) chunk {
	c.setStatus(statusFree)

	if prev, ok := c.prevAdjacent(); ok && prev.status() == statusFree {
		b.remove(prev)
		mergeAdjacent(prev, c)
		c = prev
	}
	if next, ok := c.nextAdjacent(); ok && next.status() == statusFree {
		b.remove(next)
		mergeAdjacent(c, next)
	}
	c.setFooter()

	b.pushHead(binIndexForUnits(c.units()), c)
	return c
}

func (b *segregatedBins) remove(c chunk) {
	idx := binIndexForUnits(c.units())
	p := c.prevFree()
	n := c.nextFree()
	if p != nilOffset {
		b.r.chunkAt(p).setNextFree(n)
	} else {
		b.bins[idx] = n
	}
	if n != nilOffset {
		b.r.chunkAt(n).setPrevFree(p)
	}
}

func (b *segregatedBins) find(required int32) (chunk, bool) {
	start := binIndexForUnits(required)

	// First-fit within the starting bucket...
	for off := b.bins[start]; off != nilOffset; {
		c := b.r.chunkAt(off)
		if c.units() >= required {
			return c, true
		}
		off = c.nextFree()
	}

	// ...then any chunk at all from the first non-empty larger bucket.
	for i := start + 1; i < numBins; i++ {
		if b.bins[i] != nilOffset {
			return b.r.chunkAt(b.bins[i]), true
		}
	}
	return chunk{}, false
}

func (b *segregatedBins) debugWalk() ([]int64, error) {
	var offs []int64
	for idx, head := range b.bins {
		prev := int64(nilOffset)
		for off := head; off != nilOffset; {
			c := b.r.chunkAt(off)
			if c.status() != statusFree {
				return nil, errors.Errorf("bin %d: non-free chunk at offset %d", idx, off)
			}
			if want := binIndexForUnits(c.units()); want != idx {
				return nil, errors.Errorf("bin %d: chunk at offset %d belongs in bin %d", idx, off, want)
			}
			if c.prevFree() != prev {
				return nil, errors.Errorf("bin %d: broken prev link at offset %d", idx, off)
			}
			offs = append(offs, off)
			prev = off
			off = c.nextFree()
		}
	}
	return offs, nil
}

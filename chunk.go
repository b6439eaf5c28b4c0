package allocator

import "unsafe"

// chunkStatus records whether a chunk is available for allocation.
type chunkStatus int32

const (
	statusFree chunkStatus = iota
	statusInUse
)

func (s chunkStatus) String() string {
	if s == statusFree {
		return "free"
	}
	return "in_use"
}

const (
	// chunkUnit is the allocation granularity in bytes. All chunk sizes
	// (and the addresses of every header) are multiples of this.
	chunkUnit = 16

	// headerUnits and footerUnits are fixed given the struct layouts
	// below; an init-time assertion keeps them honest.
	headerUnits = 1
	footerUnits = 1

	// minSplitOverhead is the fewest units a carved-off remainder needs
	// to be a syntactically valid free chunk: one header unit, one
	// payload unit, and the footer.
	minSplitOverhead = 2 + footerUnits

	// numBins is the bucket count for the segregated free index.
	numBins = 32

	// memallocMin is the default minimum grow size, in units.
	memallocMin = 1024
)

// nilOffset marks the absence of a free-list link or neighbor.
const nilOffset int64 = -1

// chunkHeader sits at the start of every chunk, occupying exactly one
// chunk unit. next is a weak reference into the free index and is
// meaningful only while status == statusFree.
type chunkHeader struct {
	next   int64
	units  int32
	status chunkStatus
}

// chunkFooter sits at the end of every chunk's payload, occupying
// exactly one chunk unit. headerBackRef lets whoever owns the next
// chunk locate this one in O(1). prevFree is the backward free-list
// link used by both free-index variants; like next it is meaningful
// only while the chunk is free.
type chunkFooter struct {
	headerBackRef int64
	prevFree      int64
}

func init() {
	if unsafe.Sizeof(chunkHeader{}) != chunkUnit {
		panic("allocator: chunkHeader does not occupy exactly one chunk unit")
	}
	if unsafe.Sizeof(chunkFooter{}) != chunkUnit {
		panic("allocator: chunkFooter does not occupy exactly one chunk unit")
	}
}

// chunk is a lightweight cursor onto a chunk living at a given byte
// offset inside a region's arena. It carries no state of its own beyond
// the offset, so copying it around is free.
type chunk struct {
	r   *region
	off int64
}

func (c chunk) valid() bool { return c.r != nil }

func (c chunk) header() *chunkHeader { return c.r.headerAt(c.off) }

func (c chunk) status() chunkStatus     { return c.header().status }
func (c chunk) setStatus(s chunkStatus) { c.header().status = s }

func (c chunk) units() int32      { return c.header().units }
func (c chunk) setUnits(u int32)  { c.header().units = u }
func (c chunk) nextFree() int64   { return c.header().next }
func (c chunk) setNextFree(o int64) { c.header().next = o }

// footerOff computes the address of this chunk's footer from its
// current units. Must be recomputed any time units changes.
func (c chunk) footerOff() int64 {
	return c.off + int64(headerUnits+int(c.units()))*chunkUnit
}

func (c chunk) footer() *chunkFooter { return c.r.footerAt(c.footerOff()) }

func (c chunk) prevFree() int64     { return c.footer().prevFree }
func (c chunk) setPrevFree(o int64) { c.footer().prevFree = o }

// setFooter writes this chunk's back-reference so that
// footer(c).headerBackRef == c.off. Must be called after any mutation
// of units, since that moves the footer's address.
func (c chunk) setFooter() {
	c.footer().headerBackRef = c.off
}

// totalUnits is the whole-chunk size (header + payload + footer), in
// chunk units.
func (c chunk) totalUnits() int32 { return headerUnits + c.units() + footerUnits }

// totalSize is totalUnits expressed in bytes.
func (c chunk) totalSize() int64 { return int64(c.totalUnits()) * chunkUnit }

// payloadOff is the address handed back to callers of Alloc.
func (c chunk) payloadOff() int64 { return c.off + headerUnits*chunkUnit }

// nextAdjacent returns the chunk immediately following this one in
// address order, or false if this is the last chunk in [start, end).
func (c chunk) nextAdjacent() (chunk, bool) {
	n := c.off + c.totalSize()
	if n >= c.r.end {
		return chunk{}, false
	}
	return c.r.chunkAt(n), true
}

// prevAdjacent returns the chunk immediately preceding this one in
// address order, located via its boundary tag, or false if this is the
// first chunk in the region.
func (c chunk) prevAdjacent() (chunk, bool) {
	start := c.r.start()
	if c.off <= start {
		return chunk{}, false
	}
	prevFooterOff := c.off - footerUnits*chunkUnit
	if prevFooterOff < start {
		return chunk{}, false
	}
	prevHeaderOff := c.r.footerAt(prevFooterOff).headerBackRef
	if prevHeaderOff < start || prevHeaderOff >= c.off {
		return chunk{}, false
	}
	return c.r.chunkAt(prevHeaderOff), true
}

// isValid performs a bounds/sanity check on c: used only for debug-mode
// invariant walks, never on the control-flow path of Alloc/Free.
func (c chunk) isValid(start, end int64) bool {
	if c.off < start || c.off >= end {
		return false
	}
	if c.units() <= 0 {
		return false
	}
	if c.footerOff()+chunkUnit > end {
		return false
	}
	return c.footer().headerBackRef == c.off
}

// mergeAdjacent absorbs c2 (the immediate, free, higher-address
// neighbor of c1) into c1 and returns c1's identity. It only touches
// the header/footer algebra; callers are responsible for free-index
// bookkeeping around the merge.
func mergeAdjacent(c1, c2 chunk) chunk {
	c1.setUnits(c1.units() + c2.units() + headerUnits + footerUnits)
	return c1
}

// sizeToUnits rounds a requested payload size up to whole chunk units.
func sizeToUnits(size int) int32 {
	return int32((size + chunkUnit - 1) / chunkUnit)
}

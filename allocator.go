package allocator

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Allocator is a heap allocator over a single reserved memory region.
// It is not safe for concurrent use; callers needing that must
// serialize access themselves (see the package doc).
type Allocator struct {
	region  *region
	index   freeIndex
	variant Variant
	log     zerolog.Logger
	debug   bool
	minGrow int32
}

// New reserves a heap region and constructs an Allocator backed by the
// requested free-index variant. Idiomatic Go prefers an explicit, owned
// value over an implicit package-level singleton lazily initialized on
// first use, so construction happens here instead of inside the first
// call to Alloc. See DESIGN.md for the reasoning.
func New(variant Variant, opts ...Option) (*Allocator, error) {
	cfg := config{
		arenaSize:    defaultArenaSize,
		minGrowUnits: memallocMin,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zerolog.Nop()
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	r, err := newRegion(cfg.arenaSize, logger)
	if err != nil {
		return nil, errors.Wrap(err, "initialize heap region")
	}

	a := &Allocator{
		region:  r,
		variant: variant,
		log:     logger,
		debug:   cfg.debug,
		minGrow: cfg.minGrowUnits,
	}

	switch variant {
	case VariantSortedList:
		a.index = newSortedList(r)
	case VariantSegregatedBins:
		a.index = newSegregatedBins(r)
	default:
		return nil, errors.Errorf("allocator: unknown free-index variant %d", variant)
	}

	return a, nil
}

// Close releases the reserved address space. The heap does not survive
// process exit by design; Close exists for long-running processes that
// create and discard many allocators.
func (a *Allocator) Close() error {
	return a.region.close()
}

// Alloc returns a pointer to size bytes of payload, or nil if size is
// non-positive or the heap could not be grown to satisfy the request.
func (a *Allocator) Alloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	required := sizeToUnits(size)

	c, ok := a.index.find(required)
	if !ok {
		grown, err := a.growHeap(required)
		if err != nil {
			a.log.Warn().Err(err).Int("requested_bytes", size).Msg("alloc failed: could not grow heap")
			return nil
		}
		c = grown
	}

	var result chunk
	if c.units() > required+minSplitOverhead {
		result = a.split(c, required)
	} else {
		a.index.remove(c)
		c.setStatus(statusInUse)
		c.setFooter()
		result = c
	}

	ptr := a.region.offsetToPointer(result.payloadOff())

	a.log.Debug().
		Str("variant", a.variant.String()).
		Int("requested_bytes", size).
		Int32("granted_units", result.units()).
		Msg("alloc")

	a.assertValidAfter("alloc")
	return ptr
}

// Free returns ptr's chunk to the heap, coalescing it with any free
// neighbors. A nil pointer, a pointer outside the heap, or a pointer to
// a chunk that is not currently in use are all silently ignored; a
// user-facing allocator cannot distinguish caller error from a double
// free without extra bookkeeping this design doesn't carry.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	off, ok := a.region.pointerToOffset(ptr)
	if !ok {
		return
	}
	headerOff := off - chunkUnit
	if headerOff < a.region.start() || headerOff >= a.region.end {
		return
	}
	c := a.region.chunkAt(headerOff)
	if c.status() != statusInUse {
		return
	}

	a.index.insert(c)

	a.log.Debug().Str("variant", a.variant.String()).Msg("free")
	a.assertValidAfter("free")
}

// growHeap requests at least minGrow units from the OS, initializes the
// fresh chunk, and registers it with the free index (which coalesces it
// with the previously-last chunk if that one was free), returning the
// resulting chunk.
func (a *Allocator) growHeap(required int32) (chunk, error) {
	allocUnits := required
	if allocUnits < a.minGrow {
		allocUnits = a.minGrow
	}

	totalUnits := int64(headerUnits) + int64(allocUnits) + int64(footerUnits)
	priorEnd, err := a.region.grow(totalUnits * chunkUnit)
	if err != nil {
		return chunk{}, err
	}

	c := a.region.chunkAt(priorEnd)
	c.setUnits(allocUnits)
	c.setNextFree(nilOffset)
	c.setPrevFree(nilOffset)
	c.setFooter()

	final := a.index.insert(c)
	a.log.Debug().Int32("alloc_units", allocUnits).Int64("offset", priorEnd).Msg("heap grown")
	return final, nil
}

// split carves a free remainder off the low address end of c and
// returns the high-address portion, sized exactly to required units
// and marked in use.
func (a *Allocator) split(c chunk, required int32) chunk {
	a.index.remove(c)

	u := c.units()
	remainderUnits := u - required - headerUnits - footerUnits
	c.setUnits(remainderUnits)
	c.setStatus(statusFree)
	c.setFooter()

	c2 := a.region.chunkAt(c.off + c.totalSize())
	c2.setUnits(required)
	c2.setStatus(statusInUse)
	c2.setFooter()

	a.index.insert(c)
	return c2
}

func (a *Allocator) assertValidAfter(op string) {
	if !a.debug {
		return
	}
	if err := a.walkHeap(); err != nil {
		a.log.Error().Err(err).Str("op", op).Msg("heap invariant violated")
	}
}

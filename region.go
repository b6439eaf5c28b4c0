package allocator

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// defaultArenaSize bounds how much address space is reserved for a
// heap. It is not memory that gets touched eagerly — only the pages
// between the prior and new break are committed (mprotect'd to
// read-write) as the heap grows.
const defaultArenaSize = 1 << 30 // 1 GiB

// ErrArenaExhausted is returned when a grow request would advance the
// break past the end of the reserved arena. The allocator façade turns
// this into a null return from Alloc: OS-grow failures are not
// retried.
var ErrArenaExhausted = errors.New("heap: reserved arena exhausted")

// region is one Allocator's heap state: a reserved address-space
// arena and the current break offset within it. start is always 0;
// it is kept as a named concept (region.start()) rather than folded
// away, mirroring the {start, end} pair a program break exposes.
type region struct {
	arena     []byte // full reservation; len == cap == reserved size
	end       int64  // current break offset; chunks tile [0, end)
	committed int64  // page-aligned upper bound of read-write pages
	pageSize  int64
	log       zerolog.Logger
}

// newRegion reserves arenaSize bytes of address space, initially
// inaccessible (PROT_NONE). No bytes are committed yet: end starts at
// zero, matching an empty heap whose start equals its break.
func newRegion(arenaSize int64, log zerolog.Logger) (*region, error) {
	if arenaSize <= 0 {
		arenaSize = defaultArenaSize
	}

	if free := freeSystemMemory(); free > 0 && uint64(arenaSize) > free {
		log.Warn().
			Uint64("free_system_bytes", free).
			Int64("requested_reservation_bytes", arenaSize).
			Msg("reserving more address space than currently-free system memory; relying on OS overcommit")
	}

	b, err := unix.Mmap(-1, 0, int(arenaSize), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "reserve heap arena")
	}

	return &region{
		arena:    b,
		end:      0,
		pageSize: int64(unix.Getpagesize()),
		log:      log,
	}, nil
}

func (r *region) start() int64 { return 0 }

// grow advances the break by extraBytes, committing whatever new pages
// that requires, and returns the prior break (the start of the newly
// available range) — the same contract as the classical program-break
// primitive. The break never retreats.
func (r *region) grow(extraBytes int64) (int64, error) {
	newEnd := r.end + extraBytes
	if newEnd > int64(len(r.arena)) {
		return 0, ErrArenaExhausted
	}

	if newEnd > r.committed {
		target := roundUp(newEnd, r.pageSize)
		if target > int64(len(r.arena)) {
			target = int64(len(r.arena))
		}
		if err := unix.Mprotect(r.arena[r.committed:target], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, errors.Wrap(err, "commit heap pages")
		}
		r.committed = target
	}

	priorEnd := r.end
	r.end = newEnd
	r.log.Debug().
		Int64("prior_end", priorEnd).
		Int64("new_end", r.end).
		Int64("grew_bytes", extraBytes).
		Msg("heap break advanced")
	return priorEnd, nil
}

func roundUp(v, multiple int64) int64 {
	if multiple <= 0 {
		return v
	}
	return ((v + multiple - 1) / multiple) * multiple
}

// close releases the reserved arena. The heap does not outlive the
// process by design, but tests and long-running callers that create
// many allocators still want this.
func (r *region) close() error {
	return unix.Munmap(r.arena)
}

func (r *region) headerAt(off int64) *chunkHeader {
	return (*chunkHeader)(unsafe.Pointer(&r.arena[off]))
}

func (r *region) footerAt(off int64) *chunkFooter {
	return (*chunkFooter)(unsafe.Pointer(&r.arena[off]))
}

func (r *region) chunkAt(off int64) chunk {
	return chunk{r: r, off: off}
}

// offsetToPointer and pointerToOffset are the single conversion point
// between the region's internal offset space and the addresses handed
// to and received from callers.
func (r *region) offsetToPointer(off int64) unsafe.Pointer {
	return unsafe.Pointer(&r.arena[off])
}

func (r *region) pointerToOffset(ptr unsafe.Pointer) (int64, bool) {
	base := uintptr(unsafe.Pointer(&r.arena[0]))
	p := uintptr(ptr)
	if p < base || p >= base+uintptr(len(r.arena)) {
		return 0, false
	}
	return int64(p - base), true
}

package allocator

import "github.com/rs/zerolog"

// Variant selects which free-index implementation an Allocator uses.
// Both share the same chunk layout and split/merge algebra; they
// differ only in how free chunks are indexed and searched.
type Variant int

const (
	// VariantSortedList indexes free chunks in a single address-ordered
	// doubly linked list.
	VariantSortedList Variant = iota
	// VariantSegregatedBins indexes free chunks in 32 size-class
	// buckets.
	VariantSegregatedBins
)

func (v Variant) String() string {
	switch v {
	case VariantSortedList:
		return "sorted-list"
	case VariantSegregatedBins:
		return "segregated-bins"
	default:
		return "unknown"
	}
}

type config struct {
	arenaSize    int64
	minGrowUnits int32
	debug        bool
	logger       *zerolog.Logger
}

// Option configures an Allocator at construction time.
type Option func(*config)

// WithArenaSize sets how many bytes of address space the allocator
// reserves up front. The break can never advance past this ceiling;
// doing so is treated as an OS-grow failure. Defaults to 1 GiB.
func WithArenaSize(bytes int64) Option {
	return func(c *config) { c.arenaSize = bytes }
}

// WithMinGrow overrides the minimum number of units the allocator
// requests from the OS on each grow. Defaults to 1024.
func WithMinGrow(units int32) Option {
	return func(c *config) { c.minGrowUnits = units }
}

// WithDebug enables the post-operation invariant walk; a violation is
// logged at error level and the call returns normally. Per-call debug
// events are logged regardless of this option, subject only to the
// logger's level. Off by default; meant for tests and diagnosis, not
// production use, since it walks the entire heap after every call.
func WithDebug(enabled bool) Option {
	return func(c *config) { c.debug = enabled }
}

// WithLogger supplies a zerolog.Logger for structured diagnostics.
// Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = &logger }
}

package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T, variant Variant) *Allocator {
	t.Helper()
	a, err := New(variant, WithArenaSize(4<<20), WithDebug(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func bothVariants(t *testing.T, fn func(t *testing.T, variant Variant)) {
	t.Helper()
	for _, v := range []Variant{VariantSortedList, VariantSegregatedBins} {
		v := v
		t.Run(v.String(), func(t *testing.T) { fn(t, v) })
	}
}

func TestAlloc_ZeroOrNegativeSizeReturnsNull(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		assert.Nil(t, a.Alloc(0))
		assert.Nil(t, a.Alloc(-1))
	})
}

func TestAlloc_FirstCallGrowsHeap(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		p := a.Alloc(32)
		require.NotNil(t, p)
		assert.Zero(t, a.region.start())
		assert.Greater(t, a.region.end, int64(0))
		assert.NoError(t, a.walkHeap())
	})
}

func TestAlloc_PointerIsChunkAligned(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		p := a.Alloc(9)
		require.NotNil(t, p)
		off, ok := a.region.pointerToOffset(p)
		require.True(t, ok)
		assert.Zero(t, off%chunkUnit)
		assert.GreaterOrEqual(t, off, a.region.start()+chunkUnit)
		assert.Less(t, off, a.region.end)
	})
}

func TestFree_Null_IsNoOp(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		a.Free(nil)
		assert.NoError(t, a.walkHeap())
	})
}

func TestFree_ForeignPointer_IsSilentNoOp(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		var x int
		a.Free(unsafe.Pointer(&x)) // not in the arena at all
		assert.NoError(t, a.walkHeap())
	})
}

func TestFree_DoubleFree_IsSilentNoOp(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		p := a.Alloc(16)
		require.NotNil(t, p)
		a.Free(p)
		require.NoError(t, a.walkHeap())
		a.Free(p) // second free of the same pointer must not corrupt the heap
		assert.NoError(t, a.walkHeap())
	})
}

// Two allocations, freed in either order, must coalesce back into a
// single chunk spanning the heap.
func TestFreeOrder_CoalescesToSingleChunk(t *testing.T) {
	for _, order := range []string{"forward", "reverse"} {
		order := order
		bothVariants(t, func(t *testing.T, variant Variant) {
			t.Run(order, func(t *testing.T) {
				a := newTestAllocator(t, variant)
				p1 := a.Alloc(16)
				p2 := a.Alloc(16)
				require.NotNil(t, p1)
				require.NotNil(t, p2)

				if order == "forward" {
					a.Free(p1)
					a.Free(p2)
				} else {
					a.Free(p2)
					a.Free(p1)
				}

				require.NoError(t, a.walkHeap())

				start := a.region.start()
				c := a.region.chunkAt(start)
				assert.Equal(t, statusFree, c.status())
				assert.Equal(t, a.region.end, c.off+c.totalSize())
			})
		})
	}
}

// first-fit reuses a freed hole. minGrow is pinned to the exact request
// size so each alloc grows its own chunk with no split remainder,
// isolating the hole free(A) leaves behind.
func TestFirstFit_ReusesFreedHole(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a, err := New(variant, WithArenaSize(4<<20), WithDebug(true), WithMinGrow(4))
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })

		pA := a.Alloc(64)
		_ = a.Alloc(64)
		a.Free(pA)
		pC := a.Alloc(64)
		assert.Equal(t, pA, pC)
	})
}

// A request at (or beyond) memallocMin consumes the first grow almost
// entirely; a subsequent small request triggers a second grow.
func TestAlloc_LargeThenSmall_TriggersTwoGrows(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		big := a.Alloc(memallocMin * chunkUnit)
		require.NotNil(t, big)
		endAfterFirst := a.region.end

		small := a.Alloc(1)
		require.NotNil(t, small)
		assert.Greater(t, a.region.end, endAfterFirst)
	})
}

func TestAlloc_SplitLeavesRemainderFree(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		p := a.Alloc(32) // far smaller than a MEMALLOC_MIN-sized grow
		require.NotNil(t, p)

		off, ok := a.region.pointerToOffset(p)
		require.True(t, ok)
		c := a.region.chunkAt(off - chunkUnit)
		assert.Equal(t, statusInUse, c.status())

		// split carves the returned chunk from the upper-address end,
		// so the free remainder is c's predecessor, not its successor.
		prev, ok := c.prevAdjacent()
		require.True(t, ok, "split should have left a free remainder")
		assert.Equal(t, statusFree, prev.status())
	})
}

func TestAlloc_NoSplitWhenRemainderTooSmall(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		// Request almost exactly what a fresh grow provides so the
		// leftover after carving it off would be below minSplitOverhead.
		p := a.Alloc(int(memallocMin-1) * chunkUnit)
		require.NotNil(t, p)
		off, ok := a.region.pointerToOffset(p)
		require.True(t, ok)
		c := a.region.chunkAt(off - chunkUnit)
		assert.Equal(t, int32(memallocMin), c.units(), "whole chunk should have been granted without splitting")
	})
}

func TestWalkHeap_TilesExactly(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a := newTestAllocator(t, variant)
		ptrs := make([]unsafe.Pointer, 0, 10)
		for i := 0; i < 10; i++ {
			ptrs = append(ptrs, a.Alloc(16*(i+1)))
		}
		for i, p := range ptrs {
			if i%2 == 0 {
				a.Free(p)
			}
		}
		assert.NoError(t, a.walkHeap())
	})
}

func TestAlloc_NilOnArenaExhaustion(t *testing.T) {
	bothVariants(t, func(t *testing.T, variant Variant) {
		a, err := New(variant, WithArenaSize(8192), WithMinGrow(4))
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close() })

		var last unsafe.Pointer
		for i := 0; i < 10000; i++ {
			p := a.Alloc(64)
			if p == nil {
				break
			}
			last = p
		}
		assert.Nil(t, a.Alloc(1<<30), "a request past the reservation ceiling must fail")
		_ = last
	})
}

func TestNew_UnknownVariant(t *testing.T) {
	_, err := New(Variant(99))
	assert.Error(t, err)
}

package allocator

import "github.com/pbnjay/memory"

// freeSystemMemory reports free host physical memory in bytes, or 0 if
// the platform doesn't expose it. It is consulted purely for the
// diagnostic logged when reserving the arena — it never blocks an
// allocation or triggers recovery logic. Overridable in tests.
var freeSystemMemory = memory.FreeMemory

package cachedmem

import (
	"github.com/sarchlab/sparta/mem"
	"github.com/sarchlab/sparta/sim"
)

// A CoherencePoint watches the writes that reach a shared memory and merges
// them into every cache other than the one that made them.
type CoherencePoint struct {
	caches []*CachedMemory
}

// AttachCoherence hooks a coherence point to the shared memory node. Writes
// that carry a WriteID in their supplement are not merged back into the
// cache that issued them.
func AttachCoherence(shared *mem.BlockingMemoryIFNode, caches ...*CachedMemory) *CoherencePoint {
	cp := &CoherencePoint{caches: caches}
	shared.AcceptHook(cp)

	return cp
}

// Add makes another cache see the shared writes.
func (cp *CoherencePoint) Add(c *CachedMemory) {
	cp.caches = append(cp.caches, c)
}

// Func merges a post-write notification.
func (cp *CoherencePoint) Func(ctx sim.HookCtx) {
	if ctx.Pos != mem.HookPosPostWrite {
		return
	}

	w := ctx.Item.(*mem.WriteAccess)

	origin, fromCache := originOf(w.Supplement)

	for _, c := range cp.caches {
		if fromCache && c.uid == origin {
			continue
		}

		c.Merge(w.Addr, w.Data)
	}
}

func originOf(sup *mem.Supplement) (uint8, bool) {
	if sup == nil {
		return 0, false
	}

	id, ok := sup.In.(WriteID)
	if !ok {
		return 0, false
	}

	return id.Cache(), true
}

package syncengine

import "sync/atomic"

// slotGuard implements the latest-request-wins rule for one logical cache
// slot. Remote calls are abandoned on timeout, not aborted, so a late
// response can arrive after fallback has already happened; its result must
// be dropped instead of overwriting newer state.
type slotGuard struct {
	issued  atomic.Uint64
	applied atomic.Uint64
}

// begin tags a new in-flight request and returns its token.
func (g *slotGuard) begin() uint64 {
	return g.issued.Add(1)
}

// commit reports whether the tagged request is still the latest issued for
// the slot. A true return reserves the slot so an older token can never
// commit afterwards.
func (g *slotGuard) commit(token uint64) bool {
	for {
		if token != g.issued.Load() {
			return false
		}
		cur := g.applied.Load()
		if token <= cur {
			return false
		}
		if g.applied.CompareAndSwap(cur, token) {
			return true
		}
	}
}

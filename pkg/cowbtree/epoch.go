// pkg/cowbtree/epoch.go
package cowbtree

import (
	"github.com/mjm918/debra/pkg/debra"
)

// EpochManager is CowBTree's memory-reclamation façade. It used to carry
// its own hand-rolled epoch counter, sync.Map of reader states, and
// per-epoch retired-node buckets; all of that is now delegated to
// github.com/mjm918/debra/pkg/debra, which implements the same idea —
// readers announce an epoch on Enter, old nodes are Retired rather than
// freed outright, and nothing is reclaimed until no announced epoch could
// still observe it — as a proper distributed, lock-free scheme instead of
// a single mutex-guarded map.
//
// Each goroutine that calls Enter gets its own debra.Local, cached by
// goroutine id for the lifetime of the process (see
// debra.Domain.PerGoroutineLocal); CowBTree never needs its callers to
// manage that handle explicitly.
type EpochManager struct {
	domain *debra.Domain
}

// NewEpochManager creates a new epoch manager backed by a fresh
// reclamation domain.
func NewEpochManager() *EpochManager {
	return &EpochManager{domain: debra.NewDomain()}
}

// ReaderGuard represents an active reader session.
type ReaderGuard struct {
	guard *debra.Guard
}

// Enter begins a read operation. Returns a ReaderGuard that must be
// released with Leave(). While the guard is held, every node reachable
// from the root at the moment of Enter is guaranteed to stay allocated.
func (e *EpochManager) Enter() *ReaderGuard {
	return &ReaderGuard{guard: e.domain.PerGoroutineLocal().Enter()}
}

// Leave ends a read operation, allowing epoch advancement.
func (g *ReaderGuard) Leave() {
	if g == nil || g.guard == nil {
		return
	}
	g.guard.Leave()
	g.guard = nil
}

// Retire marks a node for later reclamation, once no reader that could
// still be looking at it remains.
func (e *EpochManager) Retire(node *CowNode) {
	if node == nil {
		return
	}
	local := e.domain.PerGoroutineLocal()
	debra.Retire(local, node, func(*CowNode) {})
}

// RetireNodes retires multiple nodes at once.
func (e *EpochManager) RetireNodes(nodes []*CowNode) {
	if len(nodes) == 0 {
		return
	}
	local := e.domain.PerGoroutineLocal()
	for _, node := range nodes {
		if node != nil {
			debra.Retire(local, node, func(*CowNode) {})
		}
	}
}

// TryReclaim runs TryFlush on the calling goroutine's reclamation state: a
// rotate-and-reclaim/adopt pass happens only if the global epoch has moved
// since that goroutine last observed it. It never advances the epoch.
func (e *EpochManager) TryReclaim() {
	e.domain.PerGoroutineLocal().TryFlush()
}

// ActiveReaderCount reports whether the calling goroutine currently holds
// an open guard against this tree, as a count of 0 or 1. Guards held by
// other goroutines are not counted: the underlying registry does not expose
// a live count without walking it.
func (e *EpochManager) ActiveReaderCount() int {
	if e.domain.PerGoroutineLocal().IsActive() {
		return 1
	}
	return 0
}

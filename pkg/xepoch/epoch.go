// Package xepoch implements the global epoch counter and the per-thread
// announcement word that the rest of this module's distributed epoch-based
// reclamation scheme is built on.
//
// The global epoch advances in steps of two; the reserved low bit is never
// set on an Epoch value by itself. ThreadAnnouncement reuses that spare bit
// to fold a thread's Active/Inactive state into the same machine word as
// its announced epoch, so a reader never observes a torn (epoch, state)
// pair.
package xepoch

import "sync/atomic"

// Epoch is a point in the global reclamation timeline. Valid epoch values
// are always even; Global.CompareAndAdvance is the only thing that ever
// bumps one.
type Epoch uint64

const increment Epoch = 2

// Next returns the epoch one step ahead of e, wrapping on overflow the same
// way the rest of the arithmetic in this package does.
func (e Epoch) Next() Epoch { return e + increment }

// Age returns how many steps behind the current epoch e is, folded into
// {0, 1, 2, other}. Ages outside {0, 1, 2} mean e is safe to reclaim
// immediately: the thread that announced it cannot still be relying on it,
// since at most two epochs can be "in flight" at once under this scheme.
func (e Epoch) Age(current Epoch) uint64 {
	diff := (current - e) / increment
	if diff > 2 {
		return 3 // sentinel: "not 0, 1, or 2" — safe to reclaim now
	}
	return uint64(diff)
}

// Global is the process-wide epoch counter (spec: GlobalSingleton.epoch).
// Every operation is a plain atomic load/CAS; Go's sync/atomic already
// gives every such operation sequentially-consistent semantics, which is at
// least as strong as the Release/Acquire pairing the design calls for.
type Global struct {
	word atomic.Uint64
}

// NewGlobal returns a Global epoch counter starting at 0.
func NewGlobal() *Global { return &Global{} }

// Load returns the current global epoch.
func (g *Global) Load() Epoch { return Epoch(g.word.Load()) }

// CompareAndAdvance attempts to move the global epoch from current to
// current.Next(), reporting whether this call performed the advance.
func (g *Global) CompareAndAdvance(current Epoch) bool {
	return g.word.CompareAndSwap(uint64(current), uint64(current.Next()))
}

const activeBit uint64 = 1

// Announcement is a single atomic word combining a thread's announced
// epoch with whether it currently holds an open guard (Active) or not
// (Inactive). Packing both into one word is what makes the read in
// try_advance atomic: there is no window where a reader can see a stale
// epoch paired with a fresh state or vice versa.
type Announcement struct {
	word atomic.Uint64
}

// StoreInactive publishes "not in a critical section", preserving the last
// announced epoch (it is cosmetic while Inactive — no reader's try_advance
// branch inspects it — but leaving it in place matches the (last_epoch,
// Inactive) state the round-trip property names).
func (a *Announcement) StoreInactive() {
	w := a.word.Load()
	a.word.Store(w &^ activeBit)
}

// StoreActive publishes "in a critical section, as of epoch e". Per the
// design, this write must be sequentially consistent with every other
// thread's reads of the global epoch and of this announcement — Go's
// sync/atomic already gives plain Store that guarantee.
func (a *Announcement) StoreActive(e Epoch) {
	a.word.Store(uint64(e) | activeBit)
}

// Load decodes the current announcement into its epoch and active bit.
func (a *Announcement) Load() (e Epoch, active bool) {
	w := a.word.Load()
	return Epoch(w &^ activeBit), w&activeBit != 0
}

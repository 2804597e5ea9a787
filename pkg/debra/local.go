package debra

import (
	"github.com/mjm918/debra/pkg/registry"
	"github.com/mjm918/debra/pkg/retired"
	"github.com/mjm918/debra/pkg/xepoch"
)

// Local is one participant's reclamation state: a registry entry, an
// epoch-bag ring, a bag pool, and the bookkeeping the incremental advance
// check needs. Local is not safe for concurrent use — it is meant to be
// owned by a single goroutine for its whole lifetime, the same way
// spec.md's PerThreadState is pinned to one OS thread. Go has no hook that
// fires when a goroutine exits, so callers that create a Local directly
// must call Close when they are done with it; the package-level
// convenience API (Enter/RetireDefault/Detach) does this bookkeeping for you
// keyed by goroutine id instead.
type Local struct {
	domain *Domain
	node   *registry.Node
	ring   *retired.Ring
	pool   *retired.Pool
	config Config

	nesting       uint32
	cachedEpoch   xepoch.Epoch
	opsSinceCheck uint64
	cleanStreak   uint64
	canAdvance    bool
	advanceCursor *registry.Iterator
	closed        bool
}

// NewLocal registers a new participant against d and returns its Local
// handle. The returned Local must eventually be closed with Close.
func NewLocal(d *Domain) *Local {
	cfg := d.ConfigOrDefault()
	pool := retired.NewPool(cfg.BagPoolCapacity, cfg.BagCapacity)
	l := &Local{
		domain: d,
		node:   &registry.Node{},
		ring:   retired.NewRing(pool),
		pool:   pool,
		config: cfg,
	}
	d.registry.Insert(l.node)
	return l
}

// Enter opens a critical section: while the returned Guard is held, any
// object retired anywhere in the Domain that this thread could still be
// observing is guaranteed not to be reclaimed. Guards may be nested; the
// announcement is only published on the outermost Enter and withdrawn on
// the matching outermost Leave.
func (l *Local) Enter() *Guard {
	l.setActive()
	return &Guard{local: l}
}

// setActive implements spec.md §4.4: on the outermost Enter, detect
// whether the global epoch moved since this thread last checked — if so,
// reset the incremental-check bookkeeping, rotate the bag ring (reclaiming
// whatever just aged out), and adopt any bags abandoned by threads that
// have since exited — before publishing the (possibly refreshed)
// announcement. Every outermost Enter also counts as one op toward
// CheckThreshold, driving the incremental advance check (§4.4 step 3,
// §6's check_threshold = "enters between try_advance calls").
func (l *Local) setActive() {
	if l.nesting == 0 {
		l.refreshForEpoch(l.domain.epoch.Load())
		// Sequentially consistent per spec.md's Open Question (a): this
		// write must not be reordered past, or observed torn against,
		// any other thread's read of the global epoch or of this
		// announcement.
		l.node.Announcement.StoreActive(l.cachedEpoch)

		l.opsSinceCheck++
		if l.opsSinceCheck >= l.config.CheckThreshold {
			l.opsSinceCheck = 0
			l.tryAdvance()
		}
	}
	l.nesting++
}

func (l *Local) setInactive() {
	l.nesting--
	if l.nesting == 0 {
		l.node.Announcement.StoreInactive()
	}
}

// refreshForEpoch is the shared epoch-change handler behind both setActive
// and TryFlush (spec.md §4.4 step 2 / §6): if global differs from what this
// thread last cached, the incremental-check bookkeeping is reset, the bag
// ring is rotated (reclaiming whatever just aged out two epochs), and any
// bags abandoned by threads that have since exited are adopted. It is a
// no-op when global hasn't moved, so repeated calls with no intervening
// epoch change do no reclamation work.
func (l *Local) refreshForEpoch(global xepoch.Epoch) {
	if global == l.cachedEpoch {
		return
	}
	l.cachedEpoch = global
	l.opsSinceCheck = 0
	l.cleanStreak = 0
	l.canAdvance = false
	l.advanceCursor = nil
	l.ring.RotateAndReclaim()
	l.adoptAbandoned()
}

// Retire hands ptr over to the reclamation scheme: destroy will run once no
// thread can still be observing the epoch at which ptr was retired. Retire
// must be called while a Guard from this Local is held (the object must
// still be reachable from the caller's point of view up to this call).
func Retire[T any](l *Local, ptr *T, destroy func(*T)) {
	l.ring.RetireAt(retired.Of(ptr, destroy), 0)
}

// tryAdvance implements spec.md §4.6, the distributed incremental advance
// check: examine one more registry entry than last time, looking for a
// thread whose announced epoch lags the local cache. A lagging active
// thread resets the clean streak and leaves the cursor parked on it, so the
// very next call re-checks the same node rather than skipping past it.
// Reaching the end of the registry without finding a lagging thread sets
// canAdvance — the global-epoch CAS may only fire once a full lap has
// confirmed every live thread is caught up, and then only once the streak
// of consecutive clean observations (including those made during that lap)
// reaches AdvanceThreshold, after which the streak resets regardless of
// whether the CAS won.
func (l *Local) tryAdvance() {
	if l.advanceCursor == nil {
		l.advanceCursor = l.domain.registry.Iterate()
	}

	node := l.advanceCursor.Current()
	if node == nil {
		l.canAdvance = true
		l.advanceCursor = l.domain.registry.Iterate()
		return
	}

	if node != l.node {
		if epoch, active := node.Announcement.Load(); active && epoch != l.cachedEpoch {
			l.cleanStreak = 0
			return
		}
	}

	l.advanceCursor.Advance()
	l.cleanStreak++
	if l.canAdvance && l.cleanStreak >= l.config.AdvanceThreshold {
		l.cleanStreak = 0
		l.domain.epoch.CompareAndAdvance(l.cachedEpoch)
	}
}

// adoptAbandoned drains the Domain's abandoned-bag stack and reclassifies
// everything it finds into this thread's own ring.
func (l *Local) adoptAbandoned() {
	for _, sealed := range l.domain.abandoned.TakeAll() {
		l.ring.AdoptSealed(sealed, l.cachedEpoch)
	}
}

// TryFlush runs the same epoch-change handling Enter would, without
// toggling Active: if the global epoch has moved since this thread last
// checked, the bag ring rotates (reclaiming whatever aged out) and any
// abandoned bags are adopted. Exposed per spec.md §6 for callers that want
// to proactively push memory back to the allocator between guards rather
// than waiting for the next Enter. A TryFlush with no intervening
// retirements and no epoch change is a no-op.
func (l *Local) TryFlush() {
	l.refreshForEpoch(l.domain.epoch.Load())
}

// IsActive reports whether this thread currently holds an open Guard.
// Exposed per spec.md §6 as is_thread_active.
func (l *Local) IsActive() bool {
	_, active := l.node.Announcement.Load()
	return active
}

// Close retires this thread from the Domain: any records still
// quarantined in its ring are sealed and handed to the Domain's
// AbandonedStack for some surviving thread to adopt, and its registry
// entry is removed. Close must be called exactly once, after the last
// Guard from this Local has been released; using the Local afterward is a
// programming error.
func (l *Local) Close() {
	if l.closed {
		return
	}
	l.closed = true
	sealed := l.ring.Seal(l.domain.epoch.Load())
	l.domain.abandoned.Push(sealed)
	l.domain.registry.Remove(l.node)
}

// Guard represents an open critical section obtained from Local.Enter.
type Guard struct {
	local *Local
}

// Leave closes the critical section. Leave must be called exactly once per
// Guard.
func (g *Guard) Leave() {
	g.local.setInactive()
}

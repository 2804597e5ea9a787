package retired

import "github.com/mjm918/debra/pkg/xepoch"

// Ring is the three-bag-queue epoch ring every PerThreadState owns: one
// queue per possible relative age (same epoch as the thread, one behind,
// two behind). A record retired at age 0 goes in the queue currently
// aligned with "now"; RotateAndReclaim advances which physical queue holds
// which age and reclaims whichever queue just became the oldest.
type Ring struct {
	pool   *Pool
	curr   int
	queues [3]*Queue
}

// NewRing returns a Ring backed by pool, with all three queues starting
// empty.
func NewRing(pool *Pool) *Ring {
	r := &Ring{pool: pool}
	for i := range r.queues {
		r.queues[i] = newQueue(pool)
	}
	return r
}

// indexForAge maps a relative age (0, 1, or 2) to the physical queue slot
// currently holding that age. age 0 is always the slot RotateAndReclaim
// most recently advanced onto; ages 1 and 2 sit at the other two slots in
// the fixed rotation order the ring advances through.
func (r *Ring) indexForAge(age uint64) int {
	switch age {
	case 0:
		return r.curr
	case 1:
		return (r.curr + 2) % 3
	case 2:
		return (r.curr + 1) % 3
	default:
		return -1
	}
}

// RetireAt files rec into the queue for the given relative age. An age
// outside {0, 1, 2} means rec is already safe to reclaim — no thread can
// still be observing an epoch that old — so it is destroyed immediately
// instead of being queued at all.
func (r *Ring) RetireAt(rec Retired, age uint64) {
	idx := r.indexForAge(age)
	if idx < 0 {
		rec.Reclaim()
		return
	}
	r.queues[idx].Retire(rec, r.pool)
}

// RotateAndReclaim advances the ring by one epoch step and reclaims
// whichever queue the advance just aged out.
func (r *Ring) RotateAndReclaim() {
	r.curr = (r.curr + 1) % 3
	r.queues[r.curr].ReclaimFullBags(r.pool)
}

// Seal detaches every non-empty queue from the ring, stamping each with the
// epoch it would need to be compared against to recover its relative age,
// and returns them bundled as a SealedList ready to hand to an
// AbandonedStack. The ring's queues are replaced with fresh empty ones;
// Seal is meant to be called once, as the last act of an exiting thread.
func (r *Ring) Seal(currentEpoch xepoch.Epoch) *SealedList {
	list := &SealedList{}
	for age := uint64(0); age < 3; age++ {
		idx := r.indexForAge(age)
		q := r.queues[idx]
		if q.IsEmpty() {
			continue
		}
		list.push(&sealedNode{
			epoch: currentEpoch - xepoch.Epoch(2*age),
			queue: q,
		})
		r.queues[idx] = newQueue(r.pool)
	}
	return list
}

// AdoptSealed reclassifies every queue in list by its age relative to
// currentEpoch, merging still-quarantined queues into the matching ring
// slot and immediately reclaiming anything old enough to be safe right
// away.
func (r *Ring) AdoptSealed(list *SealedList, currentEpoch xepoch.Epoch) {
	if list == nil {
		return
	}
	for n := list.head; n != nil; n = n.next {
		age := n.epoch.Age(currentEpoch)
		if age > 2 {
			n.queue.ReclaimAll(r.pool)
			continue
		}
		r.queues[r.indexForAge(age)].merge(n.queue)
	}
}

// TryReclaimAll drains every queue in the ring right now, regardless of
// age. Used for final teardown when no other thread will ever adopt this
// ring's bags.
func (r *Ring) TryReclaimAll() {
	for i := range r.queues {
		r.queues[i].ReclaimAll(r.pool)
		r.queues[i] = newQueue(r.pool)
	}
}

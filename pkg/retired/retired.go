// Package retired implements the retired-record bookkeeping this module's
// reclamation scheme quarantines unlinked objects in: a type-erased
// Retired record, fixed-capacity Bags of them, a LIFO BagQueue of Bags, a
// bounded BagPool that recycles empty Bag shells, the three-bag
// EpochBagRing every per-thread state rotates through, and the
// AbandonedStack a thread's in-flight bags are handed off to when it exits.
package retired

// Retired is a type-erased handle to one unlinked object awaiting safe
// reclamation. Rather than a vtable (as the scheme this package implements
// was originally specified with), Retired erases its payload behind a
// closure: the closure already holds the only remaining strong reference
// to the object, so the object stays reachable to the garbage collector for
// exactly as long as the Retired record itself does, and Reclaim just
// invokes whatever cleanup the caller asked for.
type Retired struct {
	destroy func()
}

// Of records ptr for later reclamation, invoking destroy (if non-nil) when
// it is safe to do so. destroy receiving ptr directly (rather than the
// caller's closure capturing it separately) keeps a single, obvious owner
// of the "is this object still needed" question.
func Of[T any](ptr *T, destroy func(*T)) Retired {
	return Retired{destroy: func() {
		if destroy != nil {
			destroy(ptr)
		}
	}}
}

// Reclaim runs the record's destructor. It must be called at most once.
func (r Retired) Reclaim() {
	if r.destroy != nil {
		r.destroy()
	}
}

// Package registry implements the lock-free, singly-linked thread registry
// every participating goroutine publishes its announcement word into. New
// entries are pushed at the head; an entry is retired with a Harris-style
// two-step removal (tag the node's successor link, then unlink it), and
// iteration is restartable: any iterator that walks into a tagged node
// helps physically unlink it and carries on rather than failing.
package registry

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/mjm918/debra/internal/markedptr"
	"github.com/mjm918/debra/pkg/xepoch"
)

// Node is one thread's registry entry. It is cache-line padded on both
// sides of the hot announcement word so that one thread spinning on its
// own announcement never false-shares with a neighbor walking the list.
type Node struct {
	_            cpu.CacheLinePad
	Announcement xepoch.Announcement
	next         markedptr.Atomic[Node]
	_            cpu.CacheLinePad
}

// List is the registry: a lock-free, insert-at-head singly-linked list of
// Nodes, ordered only by recency.
type List struct {
	head atomic.Pointer[Node]
}

// New returns an empty registry.
func New() *List { return &List{} }

// Insert publishes n at the head of the list. n must not already belong to
// any list.
func (l *List) Insert(n *Node) {
	for {
		head := l.head.Load()
		n.next.Store(head, false)
		if l.head.CompareAndSwap(head, n) {
			return
		}
	}
}

// Remove logically deletes n from the list (tags its successor link) and
// makes a best-effort attempt to physically unlink it immediately. If the
// opportunistic unlink loses a race, a later Iterator walking past n will
// finish the job — logical deletion alone is enough for correctness.
//
// Remove reports false if n was already removed.
func (l *List) Remove(n *Node) bool {
	var succ *Node
	for {
		var tag bool
		succ, tag = n.next.Load()
		if tag {
			return false
		}
		if n.next.CompareAndSwap(succ, false, succ, true) {
			break
		}
	}

	// Best-effort physical unlink starting from the head; if it fails,
	// whichever iterator next walks over n will help.
	it := l.Iterate()
	for cur := it.Current(); cur != nil; cur = it.Current() {
		if cur == n {
			it.helpUnlinkCurrent(succ)
			return true
		}
		if !it.Advance() {
			break
		}
	}
	return true
}

// Iterator walks the registry from head, helping unlink any logically
// deleted node it encounters and restarting from head whenever it loses a
// race doing so.
type Iterator struct {
	list *List
	pred *Node // nil means predecessor is the list head
	curr *Node
}

// Iterate returns a fresh iterator positioned at the current head.
func (l *List) Iterate() *Iterator {
	it := &Iterator{list: l}
	it.restart()
	return it
}

// Current returns the node the iterator is positioned on, or nil at the
// end of the list.
func (it *Iterator) Current() *Node { return it.curr }

// Advance moves the iterator to the next live node, reporting whether one
// exists.
func (it *Iterator) Advance() bool {
	if it.curr == nil {
		return false
	}
	next, tag := it.curr.next.Load()
	if tag {
		// curr was concurrently removed out from under us; the simplest
		// correct recovery is to restart the walk from head.
		it.restart()
		return it.curr != nil
	}
	it.pred = it.curr
	it.curr = next
	it.helpUnlinkTagged()
	return it.curr != nil
}

func (it *Iterator) restart() {
	it.pred = nil
	it.curr = it.list.head.Load()
	it.helpUnlinkTagged()
}

// helpUnlinkTagged skips forward over any run of logically-deleted nodes
// starting at curr, physically unlinking each one as it goes.
func (it *Iterator) helpUnlinkTagged() {
	for it.curr != nil {
		next, tag := it.curr.next.Load()
		if !tag {
			return
		}
		it.helpUnlinkCurrent(next)
	}
}

// helpUnlinkCurrent physically unlinks it.curr (already tagged, with
// successor next) and advances the cursor onto next. On a lost race it
// restarts the whole walk from head rather than trying to recompute a
// predecessor.
func (it *Iterator) helpUnlinkCurrent(next *Node) {
	if it.pred == nil {
		if it.list.head.CompareAndSwap(it.curr, next) {
			it.curr = next
			return
		}
	} else if it.pred.next.CompareAndSwap(it.curr, false, next, false) {
		it.curr = next
		return
	}
	it.restart()
}

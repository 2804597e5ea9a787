package retired

import (
	"sync/atomic"

	"github.com/mjm918/debra/pkg/xepoch"
)

// sealedNode is one still-quarantined queue an exiting thread sealed off,
// tagged with the epoch needed to recompute its relative age later.
type sealedNode struct {
	epoch xepoch.Epoch
	queue *Queue
	next  *sealedNode
}

// SealedList bundles the (at most three) non-empty queues an exiting
// thread's Ring.Seal produced. It is built up single-threadedly by the
// exiting thread before being published to an AbandonedStack, so push needs
// no synchronization.
type SealedList struct {
	head *sealedNode
}

func (l *SealedList) push(n *sealedNode) {
	n.next = l.head
	l.head = n
}

// IsEmpty reports whether the list has nothing worth adopting.
func (l *SealedList) IsEmpty() bool { return l == nil || l.head == nil }

// abandonedNode is one Treiber-stack entry: one exited thread's SealedList.
type abandonedNode struct {
	list *SealedList
	next *abandonedNode
}

// AbandonedStack is the lock-free LIFO that exiting threads push their
// sealed, still-quarantined bags onto, and that any surviving thread can
// drain with TakeAll to adopt and reclassify.
type AbandonedStack struct {
	head atomic.Pointer[abandonedNode]
}

// NewAbandonedStack returns an empty AbandonedStack.
func NewAbandonedStack() *AbandonedStack { return &AbandonedStack{} }

// Push publishes list for adoption. A list with nothing in it is dropped
// rather than pushed, since there is nothing for an adopter to do with it.
func (s *AbandonedStack) Push(list *SealedList) {
	if list.IsEmpty() {
		return
	}
	n := &abandonedNode{list: list}
	for {
		head := s.head.Load()
		n.next = head
		if s.head.CompareAndSwap(head, n) {
			return
		}
	}
}

// TakeAll atomically empties the stack and returns every SealedList that
// was on it, most-recently-pushed first. Returns nil if the stack was
// empty.
func (s *AbandonedStack) TakeAll() []*SealedList {
	for {
		head := s.head.Load()
		if head == nil {
			return nil
		}
		if s.head.CompareAndSwap(head, nil) {
			var out []*SealedList
			for n := head; n != nil; n = n.next {
				out = append(out, n.list)
			}
			return out
		}
	}
}

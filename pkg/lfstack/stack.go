// Package lfstack implements a lock-free Treiber stack used as a witness
// for the reclamation scheme in github.com/mjm918/debra/pkg/debra: every
// popped node is retired rather than freed outright, and is only actually
// destroyed once debra has proven no concurrent reader could still be
// walking through it.
//
// This mirrors the original debra crate's own test witness
// (tests/treiber.rs), which exists purely to give the reclaimer something
// realistic to reclaim under concurrent push/pop churn.
package lfstack

import (
	"sync/atomic"

	"github.com/mjm918/debra/pkg/debra"
)

type node[T any] struct {
	value T
	next  *node[T]
}

// Stack is a lock-free LIFO stack. The zero value is not usable; use New.
type Stack[T any] struct {
	domain *debra.Domain
	top    atomic.Pointer[node[T]]
}

// New returns an empty Stack whose pushes and pops participate in d's
// reclamation domain. Passing nil uses debra.DefaultDomain().
func New[T any](d *debra.Domain) *Stack[T] {
	if d == nil {
		d = debra.DefaultDomain()
	}
	return &Stack[T]{domain: d}
}

// Push adds value to the top of the stack.
func (s *Stack[T]) Push(local *debra.Local, value T) {
	n := &node[T]{value: value}
	g := local.Enter()
	defer g.Leave()
	for {
		top := s.top.Load()
		n.next = top
		if s.top.CompareAndSwap(top, n) {
			return
		}
	}
}

// Pop removes and returns the top value, reporting false if the stack was
// empty. The popped node is handed to local's reclaimer rather than
// dropped directly, since a concurrent reader elsewhere may still hold a
// pointer to it.
func (s *Stack[T]) Pop(local *debra.Local) (T, bool) {
	g := local.Enter()
	defer g.Leave()
	for {
		top := s.top.Load()
		if top == nil {
			var zero T
			return zero, false
		}
		next := top.next
		if s.top.CompareAndSwap(top, next) {
			value := top.value
			debra.Retire(local, top, func(*node[T]) {})
			return value, true
		}
	}
}

// Drain pops every remaining element, discarding them, and then calls
// local.TryFlush, which rotates and reclaims only if the global epoch has
// moved since local last observed it.
func (s *Stack[T]) Drain(local *debra.Local) {
	for {
		if _, ok := s.Pop(local); !ok {
			break
		}
	}
	local.TryFlush()
}

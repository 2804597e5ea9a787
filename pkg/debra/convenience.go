package debra

// Go has no thread-local storage keyed to a fixed OS thread for the
// lifetime of a goroutine — goroutines migrate between OS threads freely,
// and there is no hook that runs when one exits. Domain.PerGoroutineLocal
// layers a goroutine-id-keyed convenience cache of Local handles on top of
// the explicit Local API for callers happy to trade a small amount of
// bookkeeping for an ergonomic Enter/Retire/TryFlush surface, at the cost
// of needing an explicit Detach call in place of the destructor the
// original scheme relied on to notice a thread had exited. The free
// functions below are that convenience surface for DefaultDomain; any
// other Domain gets the same thing directly from its own
// PerGoroutineLocal/DetachGoroutine methods.

// Enter opens a critical section on the calling goroutine's convenience
// Local, creating one against DefaultDomain on first use.
func Enter() *Guard {
	return defaultDomain.PerGoroutineLocal().Enter()
}

// RetireDefault hands ptr to the calling goroutine's convenience Local for
// reclamation. It is a free function, not a method on Guard or Local,
// because Go forbids type parameters on methods.
func RetireDefault[T any](ptr *T, destroy func(*T)) {
	Retire(defaultDomain.PerGoroutineLocal(), ptr, destroy)
}

// TryFlush runs Local.TryFlush on the calling goroutine's convenience Local:
// if the global epoch has moved since that Local last observed it, its ring
// rotates and any abandoned bags are adopted; otherwise it does nothing.
func TryFlush() {
	defaultDomain.PerGoroutineLocal().TryFlush()
}

// IsThreadActive reports whether the calling goroutine currently holds an
// open Guard from the convenience API.
func IsThreadActive() bool {
	return defaultDomain.PerGoroutineLocal().IsActive()
}

// Detach retires the calling goroutine's convenience Local from
// DefaultDomain and forgets it. Call this before a goroutine that used the
// convenience API exits; otherwise its registry entry and quarantined bags
// leak for the life of the process, since nothing else will ever notice
// the goroutine is gone.
func Detach() {
	defaultDomain.DetachGoroutine()
}

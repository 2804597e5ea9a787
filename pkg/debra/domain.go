package debra

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/mjm918/debra/pkg/registry"
	"github.com/mjm918/debra/pkg/retired"
	"github.com/mjm918/debra/pkg/xepoch"
)

type configState int32

const (
	configUninit configState = iota
	configBusy
	configReady
)

// Domain is the process-wide (or, for callers who want more than one
// independent reclamation universe, per-subsystem) global singleton: the
// shared epoch counter, the thread registry, the abandoned-bag stack, and
// a write-once Config cell.
//
// A Domain is safe for concurrent use by many Locals; it holds no
// goroutine affinity of its own.
type Domain struct {
	epoch     *xepoch.Global
	registry  *registry.List
	abandoned *retired.AbandonedStack

	state  atomic.Int32 // configState
	config Config

	goroutineLocalsMu sync.Mutex
	goroutineLocals   map[int64]*Local
}

// NewDomain returns a fresh Domain with no configuration set yet; Locals
// created against it before InitConfig use DefaultConfig.
func NewDomain() *Domain {
	return &Domain{
		epoch:           xepoch.NewGlobal(),
		registry:        registry.New(),
		abandoned:       retired.NewAbandonedStack(),
		goroutineLocals: make(map[int64]*Local),
	}
}

// PerGoroutineLocal returns the calling goroutine's Local against this
// Domain, creating one on first use. It is the building block the
// package-level convenience API (Enter, RetireDefault, ...) is built on,
// exposed directly for callers who maintain their own Domain (for example
// one scoped to a single data structure instance) but still want to avoid
// threading an explicit *Local through every call. Call DetachGoroutine
// before a goroutine that used this exits.
func (d *Domain) PerGoroutineLocal() *Local {
	id := goid.Get()

	d.goroutineLocalsMu.Lock()
	l, ok := d.goroutineLocals[id]
	if !ok {
		l = NewLocal(d)
		d.goroutineLocals[id] = l
	}
	d.goroutineLocalsMu.Unlock()

	return l
}

// DetachGoroutine retires the calling goroutine's per-goroutine Local (as
// returned by PerGoroutineLocal) from this Domain and forgets it.
func (d *Domain) DetachGoroutine() {
	id := goid.Get()

	d.goroutineLocalsMu.Lock()
	l, ok := d.goroutineLocals[id]
	if ok {
		delete(d.goroutineLocals, id)
	}
	d.goroutineLocalsMu.Unlock()

	if ok {
		l.Close()
	}
}

// InitConfig sets the Domain's configuration, but only the first time it is
// called; later calls are no-ops and report false. This mirrors the
// original crate's write-once GlobalConfig cell: configuration is meant to
// be fixed once, early, before any Local starts relying on it.
func (d *Domain) InitConfig(cfg Config) bool {
	if !d.state.CompareAndSwap(int32(configUninit), int32(configBusy)) {
		return false
	}
	d.config = cfg
	d.state.Store(int32(configReady))
	return true
}

// ConfigOrDefault returns the Domain's configuration if InitConfig has
// completed, or DefaultConfig otherwise.
func (d *Domain) ConfigOrDefault() Config {
	if configState(d.state.Load()) == configReady {
		return d.config
	}
	return DefaultConfig()
}

// defaultDomain backs the package-level goroutine-local convenience API.
var defaultDomain = NewDomain()

// DefaultDomain returns the shared Domain the package-level Enter,
// RetireDefault, TryFlush, IsThreadActive, and Detach functions operate
// against.
func DefaultDomain() *Domain { return defaultDomain }

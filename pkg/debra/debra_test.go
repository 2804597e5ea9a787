package debra

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnterLeaveNestingOnlyTogglesOnOutermost(t *testing.T) {
	d := NewDomain()
	l := NewLocal(d)
	defer l.Close()

	require.False(t, l.IsActive())
	g1 := l.Enter()
	require.True(t, l.IsActive())
	g2 := l.Enter()
	require.True(t, l.IsActive())
	g2.Leave()
	require.True(t, l.IsActive(), "still nested one level deep")
	g1.Leave()
	require.False(t, l.IsActive())
}

func TestRetireReclaimsOnceEpochAdvancesPastIt(t *testing.T) {
	d := NewDomain()
	d.InitConfig(Config{CheckThreshold: 1, AdvanceThreshold: 1, BagCapacity: 1, BagPoolCapacity: 4})
	l := NewLocal(d)
	defer l.Close()

	var destroyed int32
	g := l.Enter()
	Retire(l, new(int), func(*int) { atomic.AddInt32(&destroyed, 1) })
	g.Leave()

	// Force enough epoch movement/rotation for the retired record to age
	// out, the same way a real workload's own Enter calls would.
	for i := 0; i < 8; i++ {
		g := l.Enter()
		Retire(l, new(int), func(*int) {})
		g.Leave()
	}
	l.TryFlush()

	require.Equal(t, int32(1), atomic.LoadInt32(&destroyed))
}

func TestCloseHandsOffToAbandonedStackAndSurvivorAdopts(t *testing.T) {
	d := NewDomain()
	d.InitConfig(Config{CheckThreshold: 1, AdvanceThreshold: 1, BagCapacity: 1, BagPoolCapacity: 4})
	leaving := NewLocal(d)
	survivor := NewLocal(d)
	defer survivor.Close()

	var destroyed int32
	g := leaving.Enter()
	Retire(leaving, new(int), func(*int) { atomic.AddInt32(&destroyed, 1) })
	g.Leave()
	leaving.Close()

	require.Equal(t, int32(0), atomic.LoadInt32(&destroyed), "must not be reclaimed before adoption + enough aging")

	// Each Enter drives the incremental advance check; with only survivor
	// left in the registry a full sweep completes immediately, so a handful
	// of cycles is enough to walk the global epoch forward, adopt the
	// abandoned bag, and age it out.
	for i := 0; i < 24; i++ {
		g := survivor.Enter()
		g.Leave()
	}
	survivor.TryFlush()

	require.Equal(t, int32(1), atomic.LoadInt32(&destroyed))
}

func TestInitConfigOnlyTakesEffectOnce(t *testing.T) {
	d := NewDomain()
	require.True(t, d.InitConfig(Config{CheckThreshold: 5, AdvanceThreshold: 5, BagCapacity: 2, BagPoolCapacity: 2}))
	require.False(t, d.InitConfig(Config{CheckThreshold: 999, AdvanceThreshold: 999, BagCapacity: 999, BagPoolCapacity: 999}))
	require.Equal(t, uint64(5), d.ConfigOrDefault().CheckThreshold)
}

func TestConvenienceAPIRoundTrip(t *testing.T) {
	// DefaultDomain is only otherwise touched by package-level Enter et al,
	// so this is the one test allowed to fix its thresholds; a low
	// CheckThreshold keeps the global epoch moving often enough for the
	// retired ints below to actually age out.
	defaultDomain.InitConfig(Config{CheckThreshold: 5, AdvanceThreshold: 0, BagCapacity: 8, BagPoolCapacity: 16})

	var wg sync.WaitGroup
	var destroyed int32
	const goroutines = 8

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			defer Detach()
			for j := 0; j < 50; j++ {
				g := Enter()
				RetireDefault(new(int), func(*int) { atomic.AddInt32(&destroyed, 1) })
				g.Leave()
			}
		}()
	}
	wg.Wait()

	// Every worker's leftover bags are now sitting on the abandoned stack;
	// repeatedly entering/leaving on the calling goroutine drives the
	// incremental advance check and adoption/rotation through enough
	// cycles to drain them all.
	for i := 0; i < 64; i++ {
		g := Enter()
		g.Leave()
		TryFlush()
	}
	require.Equal(t, int32(goroutines*50), atomic.LoadInt32(&destroyed))
}

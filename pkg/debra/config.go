package debra

import (
	"os"
	"strconv"

	"github.com/mjm918/debra/pkg/retired"
)

// Config holds the tunables this module's incremental advance check and
// epoch-bag ring use. The zero Config is not valid; use DefaultConfig.
type Config struct {
	// CheckThreshold is how many critical-section entries (Enter calls) a
	// thread makes between runs of the distributed incremental advance
	// check. A DEBRA_CHECK_THRESHOLD override of zero is ignored;
	// InitConfig does not validate this field, and a zero value there runs
	// the check on every Enter.
	CheckThreshold uint64
	// AdvanceThreshold is how many consecutive clean checks (no lagging
	// thread observed) a thread needs, after completing one full sweep of
	// the registry, before attempting to bump the global epoch. Zero is a
	// valid override: the full-sweep requirement alone still guards the
	// CAS.
	AdvanceThreshold uint64
	// BagCapacity is how many retired records a single Bag holds before
	// it rolls over.
	BagCapacity int
	// BagPoolCapacity bounds how many empty Bag shells a thread's Pool
	// retains for reuse.
	BagPoolCapacity int
}

// DefaultConfig returns {100, 100, 256, 16}, the values in spec.md's
// configuration table, each overridable at process start via the
// DEBRA_CHECK_THRESHOLD and DEBRA_ADVANCE_THRESHOLD environment variables.
func DefaultConfig() Config {
	cfg := Config{
		CheckThreshold:   100,
		AdvanceThreshold: 100,
		BagCapacity:      retired.DefaultBagCapacity,
		BagPoolCapacity:  retired.DefaultPoolCapacity,
	}
	if v, ok := envUint("DEBRA_CHECK_THRESHOLD", false); ok {
		cfg.CheckThreshold = v
	}
	if v, ok := envUint("DEBRA_ADVANCE_THRESHOLD", true); ok {
		cfg.AdvanceThreshold = v
	}
	return cfg
}

// envUint parses name as a uint64 override. A missing or unparseable value
// is ignored. Zero is rejected unless allowZero is set — check_threshold
// must be positive (a thread has to make progress between checks), but
// advance_threshold=0 is a legitimate "CAS as soon as the full sweep
// completes" configuration.
func envUint(name string, allowZero bool) (uint64, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || (v == 0 && !allowZero) {
		return 0, false
	}
	return v, true
}

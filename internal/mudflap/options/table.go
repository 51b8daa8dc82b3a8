package options

// Key identifies one entry of the option table.
type Key int

// Option table keys, one per MUDFLAP_OPTIONS name. Each key names the option
// it selects with the "-" separators dropped, so KeyLCMask is lc-mask.
const (
	// Checking modes; exactly one is active.
	KeyModeNop Key = iota
	KeyModePopulate
	KeyModeCheck
	KeyModeViolate

	// Violation policies; exactly one is active.
	KeyViolNop
	KeyViolAbort
	KeyViolSegv
	KeyViolGDB

	// Boolean switches, negated with a no- prefix.
	KeyTraceCalls
	KeyVerboseTrace
	KeyCollectStats
	KeyInternalChecking
	KeyPrintLeaks
	KeyVerboseViolations
	KeyOptimizeObjectTree
	KeyMultiThreaded
	KeyHeurProcMap
	KeyHeurStackBound
	KeyHeurStartEnd

	// Integer settings, given as name=N.
	KeyFreeQueueLength
	KeyPersistentCount
	KeyCrumpleZone
	KeyLCMask
	KeyLCShift
	KeyBacktrace
)

type kind int

const (
	// kindSet selects one value of an exclusive group (mode, policy).
	kindSet kind = iota
	kindBool
	kindInt
)

type optionSpec struct {
	key  Key
	name string
	kind kind
	desc string
}

var table = []optionSpec{
	{KeyModeNop, "mode-nop", kindSet, "mudflaps do nothing"},
	{KeyModePopulate, "mode-populate", kindSet, "mudflaps populate object tree"},
	{KeyModeCheck, "mode-check", kindSet, "mudflaps check for memory violations"},
	{KeyModeViolate, "mode-violate", kindSet, "mudflaps always cause violations (diagnostic)"},
	{KeyViolNop, "viol-nop", kindSet, "violations do not change program execution"},
	{KeyViolAbort, "viol-abort", kindSet, "violations cause a call to abort()"},
	{KeyViolSegv, "viol-segv", kindSet, "violations are promoted to SIGSEGV signals"},
	{KeyViolGDB, "viol-gdb", kindSet, "violations fork a gdb process attached to current program"},
	{KeyTraceCalls, "trace-calls", kindBool, "trace calls to mudflap runtime library"},
	{KeyVerboseTrace, "verbose-trace", kindBool, "trace internal events within mudflap runtime library"},
	{KeyCollectStats, "collect-stats", kindBool, "collect statistics on mudflap's operation"},
	{KeyInternalChecking, "internal-checking", kindBool, "perform more expensive internal checking"},
	{KeyPrintLeaks, "print-leaks", kindBool, "print any memory leaks at program shutdown"},
	{KeyVerboseViolations, "verbose-violations", kindBool, "print verbose messages when memory violations occur"},
	{KeyOptimizeObjectTree, "optimize-object-tree", kindBool, "periodically rebalance the object tree"},
	{KeyMultiThreaded, "multi-threaded", kindBool, "support multiple threads"},
	{KeyHeurProcMap, "heur-proc-map", kindBool, "support /proc/self/map heuristics"},
	{KeyHeurStackBound, "heur-stack-bound", kindBool, "enable a simple upper stack bound heuristic"},
	{KeyHeurStartEnd, "heur-start-end", kindBool, "support _start.._end heuristics"},
	{KeyFreeQueueLength, "free-queue-length", kindInt, "queue N deferred free() calls before performing them"},
	{KeyPersistentCount, "persistent-count", kindInt, "keep a history of N unregistered regions"},
	{KeyCrumpleZone, "crumple-zone", kindInt, "surround allocations with crumple zones of N bytes"},
	{KeyLCMask, "lc-mask", kindInt, "set lookup cache size mask to N (2**M - 1)"},
	{KeyLCShift, "lc-shift", kindInt, "set lookup cache pointer shift"},
	{KeyBacktrace, "backtrace", kindInt, "keep an N-level stack trace of each call context"},
}

func lookup(name string) (optionSpec, bool) {
	for _, spec := range table {
		if spec.name == name {
			return spec, true
		}
	}
	return optionSpec{}, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// get returns the value of key as an integer; selections and flags are 0 or 1.
func (o *Options) get(key Key) int64 {
	switch key {
	case KeyModeNop:
		return boolInt(o.Mode == ModeNop)
	case KeyModePopulate:
		return boolInt(o.Mode == ModePopulate)
	case KeyModeCheck:
		return boolInt(o.Mode == ModeCheck)
	case KeyModeViolate:
		return boolInt(o.Mode == ModeViolate)
	case KeyViolNop:
		return boolInt(o.Violation == ViolNop)
	case KeyViolAbort:
		return boolInt(o.Violation == ViolAbort)
	case KeyViolSegv:
		return boolInt(o.Violation == ViolSegv)
	case KeyViolGDB:
		return boolInt(o.Violation == ViolGDB)
	case KeyTraceCalls:
		return boolInt(o.TraceCalls)
	case KeyVerboseTrace:
		return boolInt(o.VerboseTrace)
	case KeyCollectStats:
		return boolInt(o.CollectStats)
	case KeyInternalChecking:
		return boolInt(o.InternalChecking)
	case KeyPrintLeaks:
		return boolInt(o.PrintLeaks)
	case KeyVerboseViolations:
		return boolInt(o.VerboseViolations)
	case KeyOptimizeObjectTree:
		return boolInt(o.OptimizeObjectTree)
	case KeyMultiThreaded:
		return boolInt(o.MultiThreaded)
	case KeyHeurProcMap:
		return boolInt(o.HeurProcMap)
	case KeyHeurStackBound:
		return boolInt(o.HeurStackBound)
	case KeyHeurStartEnd:
		return boolInt(o.HeurStartEnd)
	case KeyFreeQueueLength:
		return int64(o.FreeQueueLength)
	case KeyPersistentCount:
		return int64(o.PersistentCount)
	case KeyCrumpleZone:
		return int64(o.CrumpleZone)
	case KeyLCMask:
		return int64(o.LCMask)
	case KeyLCShift:
		return int64(o.LCShift)
	case KeyBacktrace:
		return int64(o.Backtrace)
	}
	return 0
}

// set stores v for key. For selections any call selects the value; for
// flags v is treated as a boolean.
func (o *Options) set(key Key, v int64) {
	on := v != 0
	switch key {
	case KeyModeNop:
		o.Mode = ModeNop
	case KeyModePopulate:
		o.Mode = ModePopulate
	case KeyModeCheck:
		o.Mode = ModeCheck
	case KeyModeViolate:
		o.Mode = ModeViolate
	case KeyViolNop:
		o.Violation = ViolNop
	case KeyViolAbort:
		o.Violation = ViolAbort
	case KeyViolSegv:
		o.Violation = ViolSegv
	case KeyViolGDB:
		o.Violation = ViolGDB
	case KeyTraceCalls:
		o.TraceCalls = on
	case KeyVerboseTrace:
		o.VerboseTrace = on
	case KeyCollectStats:
		o.CollectStats = on
	case KeyInternalChecking:
		o.InternalChecking = on
	case KeyPrintLeaks:
		o.PrintLeaks = on
	case KeyVerboseViolations:
		o.VerboseViolations = on
	case KeyOptimizeObjectTree:
		o.OptimizeObjectTree = on
	case KeyMultiThreaded:
		o.MultiThreaded = on
	case KeyHeurProcMap:
		o.HeurProcMap = on
	case KeyHeurStackBound:
		o.HeurStackBound = on
	case KeyHeurStartEnd:
		o.HeurStartEnd = on
	case KeyFreeQueueLength:
		o.FreeQueueLength = int(v)
	case KeyPersistentCount:
		o.PersistentCount = int(v)
	case KeyCrumpleZone:
		o.CrumpleZone = uintptr(v)
	case KeyLCMask:
		o.LCMask = uintptr(v)
	case KeyLCShift:
		o.LCShift = uint(v)
	case KeyBacktrace:
		o.Backtrace = int(v)
	}
}

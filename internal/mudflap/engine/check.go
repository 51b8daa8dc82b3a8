package engine

import (
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kolkov/mudflap/internal/mudflap/heuristics"
	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// Check validates an access of size bytes at ptr. An access not entirely
// contained in one live object, and not excused by a heuristic, is reported
// as a check violation. location describes the access site for reports and
// may be empty.
//
// Performance: a lookup cache hit costs the runtime lock, a goroutine id
// read, one hash and two compares; misses search the object tree and fill
// the cache. The caller's program counter is only looked up for a
// violation.
func (r *Runtime) Check(ptr, size uintptr, location string) {
	if !r.enter() {
		return
	}
	defer r.leave()

	if r.opts.TraceCalls {
		r.log.Debug("check", zap.Uintptr("ptr", ptr), zap.Uintptr("size", size), zap.String("location", location))
	}

	switch r.opts.Mode {
	case options.ModeNop:
		return

	case options.ModePopulate:
		idx := r.cache.Index(ptr)
		r.cache.Set(idx, ptr, object.ClampSize(ptr, size))

	case options.ModeCheck:
		if !r.check(ptr, size) {
			r.violation(ptr, size, callerPC(1+r.callerSkip), location, KindCheck, 1)
		}

	case options.ModeViolate:
		r.violation(ptr, size, callerPC(1+r.callerSkip), location, KindCheck, 1)
	}

	r.selfCheck()
}

// check reports whether [ptr, ptr+size) is valid.
func (r *Runtime) check(ptr, size uintptr) bool {
	high := object.ClampSize(ptr, size)
	idx := r.cache.Index(ptr)

	if r.opts.CollectStats {
		r.stats.checks++
	}
	if r.cache.Covers(idx, ptr, high) {
		if r.opts.CollectStats {
			r.stats.cacheHits++
		}
		return true
	}

	old := r.cache.At(idx)
	ok := r.checkSlow(idx, ptr, high)
	if r.opts.CollectStats {
		r.cache.NoteReuse(idx, old)
	}
	return ok
}

// checkSlow searches the object tree, consulting the heuristics at most
// maxHeuristicPasses times when no object contains the access.
func (r *Runtime) checkSlow(idx, low, high uintptr) bool {
	for passes := 0; ; passes++ {
		if o := r.tree.Find(low, high); o != nil && o.Contains(low, high) {
			o.CheckCount++
			r.cache.Set(idx, o.Low, o.High)
			return true
		}
		if passes == maxHeuristicPasses {
			return false
		}

		switch r.heur.Judge(low, high, r.guessReg) {
		case heuristics.Accept:
			return true
		case heuristics.Reject:
			return false
		}
	}
}

// guessRegistrar lets heuristics insert Guess objects while the runtime is
// already held.
type guessRegistrar struct {
	r *Runtime
}

// RegisterGuess implements heuristics.Registrar.
func (g guessRegistrar) RegisterGuess(low, high uintptr, name string) {
	if high < low {
		return
	}
	g.r.register(low, high-low+1, object.TypeGuess, name, 0, 1)
}

// callerPC returns the program counter skip frames above the caller of
// callerPC.
func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(skip+2, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// selfCheck validates the whole database when internal-checking is set.
func (r *Runtime) selfCheck() {
	if !r.opts.InternalChecking {
		return
	}
	if err := r.tree.Validate(); err != nil {
		r.fatal(err, "object tree")
	}
	if err := r.cemetery.Validate(); err != nil {
		r.fatal(err, "cemetery")
	}
}

// fatal reports a broken internal invariant. Continuing would produce
// wrong verdicts, so it panics.
func (r *Runtime) fatal(err error, what string) {
	err = errors.Wrapf(err, "mudflap: internal error in %s", what)
	r.log.Error("internal error", zap.Error(err))
	panic(err)
}

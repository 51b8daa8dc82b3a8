package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// Unregister retires the object starting at ptr. The access [ptr,
// ptr+size) must fall within exactly one live object that starts at ptr;
// anything else (unknown pointer, double free, interior or oversized free)
// is an unregister violation. Guess objects are never unregistered.
//
// With persistent-count set, the retired object is kept in the cemetery
// so later violations can name it.
func (r *Runtime) Unregister(ptr, size uintptr) {
	if !r.enter() {
		return
	}
	defer r.leave()

	if r.opts.Mode == options.ModeNop {
		return
	}
	pc := callerPC(1 + r.callerSkip)
	if r.opts.TraceCalls {
		r.log.Debug("unregister", zap.Uintptr("ptr", ptr), zap.Uintptr("size", size))
	}
	r.unregister(ptr, size, pc, 1+r.callerSkip)
	r.selfCheck()
}

func (r *Runtime) unregister(ptr, size, pc uintptr, skip int) {
	switch r.opts.Mode {
	case options.ModeNop:
		return

	case options.ModeViolate:
		r.violation(ptr, size, pc, "", KindUnregister, skip+1)
		return

	case options.ModePopulate:
		r.cache.Clear()
		return
	}

	high := object.ClampSize(ptr, size)
	objs, n := r.tree.FindAll(ptr, high, 1)
	if n != 1 {
		r.violation(ptr, size, pc, "", KindUnregister, skip+1)
		return
	}

	o := objs[0]
	if o.Type == object.TypeGuess {
		return
	}
	if ptr != o.Low || high > o.High {
		r.violation(ptr, size, pc, "", KindUnregister, skip+1)
		return
	}

	r.remove(o)
	if o.CheckCount > 0 {
		r.cache.Invalidate(o.Low, o.High)
	}

	if r.opts.CollectStats {
		r.stats.unregistrations++
		r.stats.unregisteredBytes += uint64(o.Size())
	}

	if r.opts.PrintLeaks && o.Type == object.TypeHeap && o.CheckCount == 0 {
		fmt.Fprintf(r.out, "*******\nmudflap warning: unaccessed registered object:\n")
		r.describe(r.out, o)
	}

	o.Deallocated = true
	o.Dealloc = r.site(pc, skip+1)

	evicted := r.cemetery.Bury(o)
	if evicted != nil {
		if r.opts.VerboseTrace && evicted != o {
			r.log.Debug("cemetery eviction", zap.Stringer("object", evicted))
		}
		r.release(evicted)
	}
}

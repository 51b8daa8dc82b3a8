package engine

import (
	"go.uber.org/zap"

	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// Register records a new object of size bytes at ptr. A size of zero is
// treated as one byte.
//
// Registering over live objects follows these rules:
//   - an identical static object registered twice is tolerated;
//   - a Guess joins the Guesses it overlaps into one, and is dropped when
//     it overlaps a real object;
//   - a real object splits the Guesses it overlaps, leaving crumple zones
//     around itself;
//   - a real object overlapping another real object is a register
//     violation and is not recorded.
func (r *Runtime) Register(ptr, size uintptr, typ object.Type, name string) {
	if !r.enter() {
		return
	}
	defer r.leave()

	if r.opts.Mode == options.ModeNop {
		return
	}
	pc := callerPC(1 + r.callerSkip)
	if r.opts.TraceCalls {
		r.log.Debug("register", zap.Uintptr("ptr", ptr), zap.Uintptr("size", size),
			zap.Stringer("type", typ), zap.String("name", name))
	}
	r.register(ptr, size, typ, name, pc, 1+r.callerSkip)
	r.selfCheck()
}

// register implements Register with the runtime held. skip is the number of
// frames between the caller of register and instrumented code.
func (r *Runtime) register(ptr, size uintptr, typ object.Type, name string, pc uintptr, skip int) {
	if !typ.Valid() {
		typ = object.TypeUnknown
	}

	switch r.opts.Mode {
	case options.ModeNop:
		return

	case options.ModeViolate:
		r.violation(ptr, size, pc, "", KindRegister, skip+1)
		return

	case options.ModePopulate:
		r.cache.Clear()
		return
	}

	if size == 0 {
		size = 1
	}
	low, high := ptr, object.ClampSize(ptr, size)

	overlaps, n := r.tree.FindAll(low, high, -1)
	if n == 0 {
		r.insert(r.newObject(low, high, typ, name, pc, skip+1))
		r.countRegistration(typ, size)
		return
	}

	if n == 1 && typ == object.TypeStatic && overlaps[0].Type == object.TypeStatic &&
		overlaps[0].SameBounds(low, high) {
		if r.opts.VerboseTrace {
			r.log.Debug("duplicate static registration", zap.Stringer("object", overlaps[0]))
		}
		return
	}

	guessesOnly := true
	for _, o := range overlaps {
		if o.Type != object.TypeGuess {
			guessesOnly = false
			break
		}
	}

	switch {
	case typ == object.TypeGuess && guessesOnly:
		r.coalesceGuesses(low, high, name, overlaps, pc, skip+1)
		r.countRegistration(typ, size)

	case typ == object.TypeGuess:
		// Real objects take precedence over guesses.
		if r.opts.VerboseTrace {
			r.log.Debug("guess overlaps a registered object",
				zap.Uintptr("low", low), zap.Uintptr("high", high), zap.Int("overlaps", n))
		}

	case guessesOnly:
		for _, g := range overlaps {
			r.splitGuess(g, low, high)
		}
		r.insert(r.newObject(low, high, typ, name, pc, skip+1))
		r.countRegistration(typ, size)

	default:
		r.violation(ptr, size, pc, "", KindRegister, skip+1)
	}
}

// countRegistration records a registration that added an object. Rejected
// and tolerated duplicate registrations are not counted, matching
// unregistration statistics.
func (r *Runtime) countRegistration(typ object.Type, size uintptr) {
	if r.opts.CollectStats {
		r.stats.registrations[typ]++
		r.stats.registeredBytes[typ] += uint64(size)
	}
}

// newObject creates an object record with its allocation site.
func (r *Runtime) newObject(low, high uintptr, typ object.Type, name string, pc uintptr, skip int) *object.Object {
	o := object.New(low, high, typ, name)
	o.Alloc = r.site(pc, skip+1)
	return o
}

// coalesceGuesses replaces the Guesses in overlaps by one Guess spanning
// them and [low, high].
func (r *Runtime) coalesceGuesses(low, high uintptr, name string, overlaps []*object.Object, pc uintptr, skip int) {
	for _, g := range overlaps {
		low = min(low, g.Low)
		high = max(high, g.High)
		r.retire(g)
	}
	if r.opts.VerboseTrace {
		r.log.Debug("coalesced guesses", zap.Uintptr("low", low), zap.Uintptr("high", high),
			zap.Int("merged", len(overlaps)))
	}
	r.insert(r.newObject(low, high, object.TypeGuess, name, pc, skip+1))
}

// splitGuess removes Guess g and re-inserts the parts of it lying outside
// [low, high] plus the crumple zone. Fragments that would be empty or
// would reach into the new object are dropped.
func (r *Runtime) splitGuess(g *object.Object, low, high uintptr) {
	r.retire(g)

	gap := object.ClampAdd(r.opts.CrumpleZone, 1)
	var frags []*object.Object
	if low >= gap && low-gap >= g.Low {
		frags = append(frags, r.fragment(g, g.Low, low-gap))
	}
	if high <= object.MaxAddr-gap && high+gap <= g.High {
		frags = append(frags, r.fragment(g, high+gap, g.High))
	}

	if r.opts.VerboseTrace {
		r.log.Debug("split guess", zap.Stringer("guess", g),
			zap.Uintptr("low", low), zap.Uintptr("high", high), zap.Int("fragments", len(frags)))
	}
	for _, f := range frags {
		r.insert(f)
	}
}

// fragment returns a copy of g restricted to [low, high]. The copy shares
// g's allocation backtrace.
func (r *Runtime) fragment(g *object.Object, low, high uintptr) *object.Object {
	f := object.New(low, high, g.Type, g.Name)
	f.Alloc = g.Alloc
	f.Alloc.Stack = r.depot.Retain(g.Alloc.Stack)
	return f
}

// retire drops a Guess from the database without burying it: guesses are
// never freed by the program and are not useful in violation reports.
func (r *Runtime) retire(g *object.Object) {
	r.remove(g)
	r.cache.Invalidate(g.Low, g.High)
	r.release(g)
}

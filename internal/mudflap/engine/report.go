package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// Stats is a snapshot of the runtime statistics.
//
// Check, cache hit, registration and unregistration counters are only
// maintained with collect-stats. Registrations count objects added to the
// database, so rejected and duplicate registrations are left out.
// Violation counters, object counts and cache state are always available.
type Stats struct {
	Checks    uint64
	CacheHits uint64

	Registrations   [object.NumTypes]uint64
	RegisteredBytes [object.NumTypes]uint64

	Unregistrations   uint64
	UnregisteredBytes uint64

	// Violations is indexed by Kind.
	Violations [NumKinds]uint64

	RotationsLeft  uint64
	RotationsRight uint64

	LiveObjects int
	DeadObjects int

	CacheUsed      int
	CacheUnused    int
	CachePeakReuse uint64

	// Stacks is the number of distinct backtraces held.
	Stacks int

	// Reentries counts calls turned away because the calling goroutine
	// was already inside the runtime.
	Reentries uint64
}

// TotalRegistrations sums registrations over all types.
func (s *Stats) TotalRegistrations() uint64 {
	var n uint64
	for _, c := range s.Registrations {
		n += c
	}
	return n
}

// TotalViolations sums violations over all kinds.
func (s *Stats) TotalViolations() uint64 {
	var n uint64
	for _, c := range s.Violations {
		n += c
	}
	return n
}

// Format writes the statistics block of the exit report.
func (s *Stats) Format(w io.Writer, persistent bool) {
	sizes := make([]string, object.NumTypes)
	for t := range sizes {
		sizes[t] = fmt.Sprintf("%s %s", object.Type(t), humanize.IBytes(s.RegisteredBytes[t]))
	}

	fmt.Fprintf(w, "*******\nmudflap stats:\n")
	fmt.Fprintf(w, "calls to check: %d (cache hits %d) rot: %d/%d\n",
		s.Checks, s.CacheHits, s.RotationsLeft, s.RotationsRight)
	fmt.Fprintf(w, "         register: %d [%s]\n", s.TotalRegistrations(), strings.Join(sizes, ", "))
	fmt.Fprintf(w, "         unregister: %d [%s]\n", s.Unregistrations, humanize.IBytes(s.UnregisteredBytes))
	fmt.Fprintf(w, "         violation: [%d, %d, %d, %d]\n",
		s.Violations[KindUnknown], s.Violations[KindCheck], s.Violations[KindRegister], s.Violations[KindUnregister])
	fmt.Fprintf(w, "lookup cache slots used: %d  unused: %d  peak-reuse: %d\n",
		s.CacheUsed, s.CacheUnused, s.CachePeakReuse)
	fmt.Fprintf(w, "number of live objects: %d\n", s.LiveObjects)
	if persistent {
		fmt.Fprintf(w, "          persistent dead objects: %d\n", s.DeadObjects)
	}
}

// Stats returns a snapshot of the statistics. It may be called from a
// violation hook.
func (r *Runtime) Stats() Stats {
	if r.enter() {
		defer r.leave()
	}
	return r.snapshotStats()
}

func (r *Runtime) snapshotStats() Stats {
	s := Stats{
		Checks:            r.stats.checks,
		CacheHits:         r.stats.cacheHits,
		Registrations:     r.stats.registrations,
		RegisteredBytes:   r.stats.registeredBytes,
		Unregistrations:   r.stats.unregistrations,
		UnregisteredBytes: r.stats.unregisteredBytes,
		Violations:        r.stats.violations,
		LiveObjects:       r.tree.Len(),
		DeadObjects:       r.cemetery.Len(),
		Reentries:         r.reentered.Load(),
	}
	s.RotationsLeft, s.RotationsRight = r.tree.Rotations()
	s.CacheUsed, s.CacheUnused, s.CachePeakReuse = r.cache.Stats()
	s.Stacks, _ = r.depot.Stats()
	return s
}

// Leaks returns the live heap objects in address order.
func (r *Runtime) Leaks() []ObjectInfo {
	if r.enter() {
		defer r.leave()
	}
	return r.leaks()
}

func (r *Runtime) leaks() []ObjectInfo {
	var out []ObjectInfo
	r.tree.Walk(func(o *object.Object) bool {
		if o.Type == object.TypeHeap {
			out = append(out, r.snapshot(o))
		}
		return true
	})
	return out
}

// Objects returns snapshots of every live object in address order.
func (r *Runtime) Objects() []ObjectInfo {
	if r.enter() {
		defer r.leave()
	}
	out := make([]ObjectInfo, 0, r.tree.Len())
	r.tree.Walk(func(o *object.Object) bool {
		out = append(out, r.snapshot(o))
		return true
	})
	return out
}

// Report writes the exit report: statistics with collect-stats, and the
// remaining heap objects as leaks with print-leaks in check mode.
func (r *Runtime) Report() {
	if !r.enter() {
		return
	}
	defer r.leave()

	r.report(r.out)
}

func (r *Runtime) report(w io.Writer) {
	if r.opts.CollectStats {
		s := r.snapshotStats()
		s.Format(w, r.opts.PersistentCount > 0)
	}

	if r.opts.PrintLeaks && r.opts.Mode == options.ModeCheck {
		leaks := r.leaks()
		showDealloc := r.opts.PersistentCount > 0
		for i := range leaks {
			fmt.Fprintf(w, "Leaked object %d:\n", i+1)
			describeObject(w, &leaks[i], showDealloc)
		}
		fmt.Fprintf(w, "number of leaked objects: %d\n", len(leaks))
	}
}

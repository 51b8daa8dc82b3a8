// Package stackdepot stores the backtraces recorded for object registrations,
// unregistrations and violations.
//
// Identical backtraces are stored once and referenced by a 64-bit FNV-1a
// hash of their program counters. Unlike a process-wide depot, a Depot
// belongs to one runtime and counts references: every Capture takes a
// reference and every Release drops one. A trace is discarded when its last
// reference goes away, so the memory held for diagnostics is bounded by the
// live objects plus the cemetery.
//
// Usage:
//
//	d := stackdepot.New()
//	h := d.Capture(1, 4)   // reference held by an object
//	...
//	d.Format(os.Stderr, h, "      ")
//	d.Release(h)           // object evicted from the cemetery
//
// Thread Safety: a Depot is NOT safe for concurrent use. The engine only
// touches it under the runtime lock.
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"runtime"
	"strings"
)

// MaxFrames bounds the depth of a single capture.
const MaxFrames = 64

// Trace is one stored backtrace.
type Trace struct {
	PC []uintptr
}

type entry struct {
	trace Trace
	refs  int
}

// Depot is a reference-counted store of deduplicated backtraces.
type Depot struct {
	stacks map[uint64]*entry

	// captures counts Capture calls that produced a trace, including
	// duplicates.
	captures uint64
}

// New creates an empty depot.
func New() *Depot {
	return &Depot{stacks: make(map[uint64]*entry)}
}

// Capture records the caller's stack, skipping skip frames above the caller
// of Capture and keeping at most depth frames. It returns the trace handle,
// or 0 when depth is zero or no frames are available.
func (d *Depot) Capture(skip, depth int) uint64 {
	if depth <= 0 {
		return 0
	}
	depth = min(depth, MaxFrames)

	var buf [MaxFrames]uintptr
	// Skip runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, buf[:depth])
	if n == 0 {
		return 0
	}
	return d.Add(buf[:n])
}

// Add stores pcs (copying them) and returns its handle with one reference
// taken.
func (d *Depot) Add(pcs []uintptr) uint64 {
	if len(pcs) == 0 {
		return 0
	}
	d.captures++

	h := hashStack(pcs)
	if e, ok := d.stacks[h]; ok {
		e.refs++
		return h
	}
	d.stacks[h] = &entry{
		trace: Trace{PC: append([]uintptr(nil), pcs...)},
		refs:  1,
	}
	return h
}

// Get returns the trace for handle h, or nil if it is unknown.
func (d *Depot) Get(h uint64) *Trace {
	if e, ok := d.stacks[h]; ok {
		return &e.trace
	}
	return nil
}

// Retain takes an additional reference to h and returns it, so that a copy
// of an object record can share its backtrace.
func (d *Depot) Retain(h uint64) uint64 {
	if e, ok := d.stacks[h]; ok {
		e.refs++
		return h
	}
	return 0
}

// Release drops one reference to h. Releasing the zero handle or an unknown
// handle is a no-op.
func (d *Depot) Release(h uint64) {
	e, ok := d.stacks[h]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(d.stacks, h)
	}
}

// Refs returns the reference count of h.
func (d *Depot) Refs(h uint64) int {
	if e, ok := d.stacks[h]; ok {
		return e.refs
	}
	return 0
}

// Stats returns the number of distinct traces held and the number of
// successful captures since the depot was created.
func (d *Depot) Stats() (unique int, captures uint64) {
	return len(d.stacks), d.captures
}

// Reset discards every trace.
func (d *Depot) Reset() {
	clear(d.stacks)
}

// Format writes the trace for h, one frame per line, each line prefixed
// with indent. Unknown handles write nothing.
func (d *Depot) Format(w io.Writer, h uint64, indent string) {
	t := d.Get(h)
	if t == nil {
		return
	}
	fmt.Fprint(w, t.Format(indent))
}

// Format renders the trace. Frames inside the Go runtime are skipped.
func (t *Trace) Format(indent string) string {
	if t == nil || len(t.PC) == 0 {
		return ""
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(t.PC)
	for {
		frame, more := frames.Next()
		if frame.PC != 0 && !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&buf, "%s%s()\n", indent, frame.Function)
			fmt.Fprintf(&buf, "%s    %s:%d\n", indent, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

// hashStack computes the FNV-1a hash of pcs.
func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var b [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(b[:], uint64(pc))
		_, _ = h.Write(b[:])
	}
	sum := h.Sum64()
	if sum == 0 {
		// Zero is reserved for "no trace".
		sum = 1
	}
	return sum
}

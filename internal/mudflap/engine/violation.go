package engine

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kolkov/mudflap/internal/mudflap/object"
)

// Kind classifies a violation.
type Kind int

const (
	// KindUnknown is never produced; it keeps the numbering of the other
	// kinds stable in statistics.
	KindUnknown Kind = iota
	// KindCheck is an invalid access.
	KindCheck
	// KindRegister is a registration over a live object.
	KindRegister
	// KindUnregister is an unregistration that matches no object exactly.
	KindUnregister
)

// NumKinds is the number of violation kinds including KindUnknown.
const NumKinds = int(KindUnregister) + 1

func (k Kind) String() string {
	switch k {
	case KindCheck:
		return "check"
	case KindRegister:
		return "register"
	case KindUnregister:
		return "unregister"
	}
	return "unknown"
}

// Relation places a violating access relative to a nearby object.
type Relation int

const (
	// RelBefore means the access ends before the object starts.
	RelBefore Relation = iota
	// RelAfter means the access starts after the object ends.
	RelAfter
	// RelInto means the access overlaps the object.
	RelInto
)

func (r Relation) String() string {
	switch r {
	case RelBefore:
		return "before"
	case RelAfter:
		return "after"
	}
	return "into"
}

// ObjectInfo is a snapshot of an object taken for a report, with its
// backtraces already rendered.
type ObjectInfo struct {
	object.Object

	// Ref identifies the object record, so that reports mentioning the
	// same object can be correlated.
	Ref string

	AllocTrace   string
	DeallocTrace string
}

// Nearby is an object found close to a violating access.
type Nearby struct {
	ObjectInfo

	// Relation and Distance locate the start of the access relative to
	// the object, in bytes.
	Relation Relation
	Distance uintptr
}

// Violation describes one detected violation.
type Violation struct {
	// Number is the 1-based sequence number within the runtime.
	Number uint64
	Kind   Kind
	Time   time.Time

	Ptr, Size uintptr

	// PC is the program counter of the instrumented caller.
	PC       uintptr
	Location string

	// Backtrace is the rendered stack of the violating call (empty unless
	// the backtrace option is set).
	Backtrace string

	// Nearby lists live objects first, then dead ones. It is only
	// collected with verbose-violations or a violation hook.
	Nearby []Nearby

	// showDealloc includes deallocation details of dead objects.
	showDealloc bool
}

// Format writes the violation report.
//
// Example output:
//
//	*******
//	mudflap violation 1 (check): time=1700000000.000123 ptr=0x1010 size=4 pc=0x4a3f2c location=`main.go:12'
//	Nearby object 1: region is 1B after
//	mudflap object 0xc000010000: name=`buf'
//	...
//	number of nearby objects: 1
func (v *Violation) Format(w io.Writer) {
	fmt.Fprintf(w, "*******\nmudflap violation %d (%s): time=%s ptr=%#08x size=%d pc=%#08x",
		v.Number, v.Kind, formatTime(v.Time), v.Ptr, v.Size, v.PC)
	if v.Location != "" {
		fmt.Fprintf(w, " location=`%s'", v.Location)
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, v.Backtrace)

	for i, n := range v.Nearby {
		fmt.Fprintf(w, "Nearby object %d: region is %dB %s\n", i+1, n.Distance, n.Relation)
		describeObject(w, &n.ObjectInfo, v.showDealloc)
	}
	fmt.Fprintf(w, "number of nearby objects: %d\n", len(v.Nearby))
}

// String returns the report as a string.
func (v *Violation) String() string {
	var b strings.Builder
	v.Format(&b)
	return b.String()
}

// describeObject writes the multi-line description of one object.
func describeObject(w io.Writer, o *ObjectInfo, showDealloc bool) {
	fmt.Fprintf(w, "mudflap object %s: name=`%s'\n", o.Ref, o.Name)
	fmt.Fprintf(w, "bounds=[%#08x,%#08x] size=%d area=%s access-count=%d\n",
		o.Low, o.High, o.Size(), o.Type, o.CheckCount)
	fmt.Fprintf(w, "alloc time=%s pc=%#08x\n", formatTime(o.Alloc.Time), o.Alloc.PC)
	fmt.Fprint(w, o.AllocTrace)

	if showDealloc && o.Deallocated {
		fmt.Fprintf(w, "dealloc time=%s pc=%#08x\n", formatTime(o.Dealloc.Time), o.Dealloc.PC)
		fmt.Fprint(w, o.DeallocTrace)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0.000000"
	}
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// snapshot copies o for a report.
func (r *Runtime) snapshot(o *object.Object) ObjectInfo {
	info := ObjectInfo{Object: *o, Ref: fmt.Sprintf("%p", o)}
	if r.opts.Backtrace > 0 {
		info.AllocTrace = r.trace(o.Alloc.Stack)
		info.DeallocTrace = r.trace(o.Dealloc.Stack)
	}
	return info
}

// describe writes the description of a live or dead object.
func (r *Runtime) describe(w io.Writer, o *object.Object) {
	info := r.snapshot(o)
	describeObject(w, &info, r.opts.PersistentCount > 0)
}

func (r *Runtime) trace(h uint64) string {
	if t := r.depot.Get(h); t != nil {
		return t.Format("      ")
	}
	return ""
}

// violation handles a detected violation: it counts it, reports it when
// verbose-violations is set, informs the hook and applies the terminal
// policy. skip is the number of frames between the caller of violation and
// instrumented code.
func (r *Runtime) violation(ptr, size, pc uintptr, location string, kind Kind, skip int) {
	r.stats.violations[kind]++
	r.violationNo++

	r.log.Debug("violation", zap.Stringer("kind", kind), zap.Uintptr("ptr", ptr),
		zap.Uintptr("size", size), zap.Uintptr("pc", pc), zap.String("location", location))

	v := &Violation{
		Number:      r.violationNo,
		Kind:        kind,
		Time:        r.now(),
		Ptr:         ptr,
		Size:        size,
		PC:          pc,
		Location:    location,
		showDealloc: r.opts.PersistentCount > 0,
	}

	if r.opts.VerboseViolations || r.hook != nil {
		if h := r.depot.Capture(skip+1, r.opts.Backtrace); h != 0 {
			v.Backtrace = r.trace(h)
			r.depot.Release(h)
		}
		v.Nearby = r.nearby(ptr, size)
	}

	if r.opts.VerboseViolations {
		v.Format(r.out)
	}
	if r.hook != nil {
		r.hook(v)
	}
	if r.terminate != nil {
		r.terminate(r.opts.Violation, v)
	}
}

// nearby finds up to nearbyMaxObjects live and then dead objects around
// [ptr, ptr+size), widening the search window quadratically until
// something is found or nearbyMaxTries widenings were made.
func (r *Runtime) nearby(ptr, size uintptr) []Nearby {
	if size == 0 {
		size = 1
	}
	low, high := ptr, object.ClampSize(ptr, size)

	var out []Nearby
	for _, dead := range []bool{false, true} {
		sLow, sHigh := low, high
		var objs []*object.Object
		for tries := uintptr(0); tries < nearbyMaxTries; {
			if dead {
				objs, _ = r.cemetery.Find(sLow, sHigh, nearbyMaxObjects)
			} else {
				objs, _ = r.tree.FindAll(sLow, sHigh, nearbyMaxObjects)
			}
			if len(objs) > 0 {
				break
			}
			tries++
			step := clampMul(size, tries*tries)
			sLow = object.ClampSub(sLow, step)
			sHigh = object.ClampAdd(sHigh, step)
		}

		for _, o := range objs {
			n := Nearby{ObjectInfo: r.snapshot(o)}
			switch {
			case high < o.Low:
				n.Relation, n.Distance = RelBefore, o.Low-high
			case low > o.High:
				n.Relation, n.Distance = RelAfter, low-o.High
			default:
				n.Relation, n.Distance = RelInto, object.ClampSub(low, o.Low)
			}
			out = append(out, n)
		}
	}
	return out
}

// clampMul returns a*b, saturating at object.MaxAddr.
func clampMul(a, b uintptr) uintptr {
	if a != 0 && b > object.MaxAddr/a {
		return object.MaxAddr
	}
	return a * b
}

// Package object defines the memory object records tracked by the mudflap runtime.
//
// An Object describes one registered region of memory by its inclusive
// address bounds [Low, High], the kind of storage it lives in, and the
// bookkeeping needed for diagnostics: how often checks matched it, where it
// was allocated, and (once retired) where it was deallocated.
//
// # Types
//
// Objects are classified by Type. Guess objects are special: they are not
// registered by instrumented code but inferred by heuristics (for example
// from the process memory map). A Guess is provisional: it is split when a
// real object is registered inside it and it is never explicitly freed.
//
// # Address Arithmetic
//
// Bounds arithmetic must never wrap around the top or bottom of the address
// space. ClampSize, ClampAdd and ClampSub saturate instead of overflowing.
package object

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies the storage backing an Object.
type Type int

const (
	// TypeUnknown is used when the registering code does not know the storage class.
	TypeUnknown Type = iota
	// TypeHeap marks dynamically allocated memory.
	TypeHeap
	// TypeStack marks automatic (stack) variables.
	TypeStack
	// TypeStatic marks global and static variables.
	TypeStatic
	// TypeGuess marks a region inferred by a heuristic.
	TypeGuess
)

// NumTypes is the number of distinct object types.
const NumTypes = int(TypeGuess) + 1

// String returns the short area name used in reports.
func (t Type) String() string {
	switch t {
	case TypeUnknown:
		return "unknown"
	case TypeHeap:
		return "heap"
	case TypeStack:
		return "stack"
	case TypeStatic:
		return "static"
	case TypeGuess:
		return "guess"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the defined types.
func (t Type) Valid() bool {
	return t >= TypeUnknown && t <= TypeGuess
}

// ParseType converts an area name ("heap", "stack", ...) back into a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return TypeUnknown, nil
	case "heap":
		return TypeHeap, nil
	case "stack":
		return TypeStack, nil
	case "static":
		return TypeStatic, nil
	case "guess":
		return TypeGuess, nil
	}
	return TypeUnknown, fmt.Errorf("unknown object type %q", s)
}

// Site records where and when an object changed state.
type Site struct {
	// PC is the program counter of the caller of the runtime entry point.
	PC uintptr

	// Time is the wall clock time of the event.
	Time time.Time

	// Stack is a stack depot handle (0 when no backtrace was captured).
	Stack uint64
}

// Object is one tracked memory region.
//
// While an object is live it is owned by the object tree; after it is
// unregistered it may be kept in the cemetery for diagnostics. Objects are
// only mutated while the owning runtime holds its lock.
type Object struct {
	// Low and High are the inclusive bounds of the region.
	Low, High uintptr

	// Type is the storage class of the region.
	Type Type

	// Name is an optional label for diagnostics.
	Name string

	// CheckCount is the number of checks that matched this object through
	// the object tree. It biases tree rotations and detects never-accessed
	// heap objects.
	CheckCount uint64

	// Alloc is the registration site.
	Alloc Site

	// Deallocated is set once the object has been unregistered.
	Deallocated bool

	// Dealloc is the unregistration site; valid only when Deallocated is set.
	Dealloc Site
}

// New returns an object covering [low, high].
func New(low, high uintptr, typ Type, name string) *Object {
	return &Object{Low: low, High: high, Type: typ, Name: name}
}

// Size returns the number of bytes covered by the object.
func (o *Object) Size() uintptr {
	return o.High - o.Low + 1
}

// Contains reports whether [low, high] lies entirely inside the object.
func (o *Object) Contains(low, high uintptr) bool {
	return low >= o.Low && high <= o.High
}

// Overlaps reports whether [low, high] shares at least one byte with the object.
func (o *Object) Overlaps(low, high uintptr) bool {
	return high >= o.Low && low <= o.High
}

// SameBounds reports whether the object covers exactly [low, high].
func (o *Object) SameBounds(low, high uintptr) bool {
	return o.Low == low && o.High == high
}

// String returns a compact description, e.g. "heap[0x1000,0x1007]".
func (o *Object) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s[%#x,%#x] %q", o.Type, o.Low, o.High, o.Name)
	}
	return fmt.Sprintf("%s[%#x,%#x]", o.Type, o.Low, o.High)
}

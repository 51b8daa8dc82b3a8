// Package heuristics decides about accesses to memory that no registered
// object covers.
//
// Instrumented programs routinely touch memory the runtime never saw being
// allocated: data of uninstrumented libraries, the environment block,
// memory handed out by the kernel. Before reporting such an access the
// checker consults a Set of heuristics. Each one either accepts the access,
// rejects it, or stays undecided. An undecided heuristic may still register
// Guess objects (for example a whole /proc/self/maps segment), in which case
// the checker's next search finds them.
package heuristics

import "fmt"

// Judgement is the verdict of a heuristic.
type Judgement int

const (
	// Undecided lets the checker search again (and consult later heuristics).
	Undecided Judgement = iota
	// Accept marks the access valid.
	Accept
	// Reject marks the access invalid.
	Reject
)

func (j Judgement) String() string {
	switch j {
	case Undecided:
		return "undecided"
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	}
	return fmt.Sprintf("Judgement(%d)", int(j))
}

// Registrar inserts Guess objects on behalf of a heuristic. Implementations
// are called with the runtime lock already held.
type Registrar interface {
	RegisterGuess(low, high uintptr, name string)
}

// Heuristic judges an access to [low, high].
type Heuristic interface {
	Name() string
	Judge(low, high uintptr, reg Registrar) Judgement
}

// Set is an ordered list of heuristics.
type Set []Heuristic

// Judge returns the first decided verdict, or Undecided.
func (s Set) Judge(low, high uintptr, reg Registrar) Judgement {
	for _, h := range s {
		if j := h.Judge(low, high, reg); j != Undecided {
			return j
		}
	}
	return Undecided
}

// Region is one mapping of the process address space, with inclusive bounds.
type Region struct {
	Low, High uintptr
	Perms     string
	Path      string
}

// Contains reports whether [low, high] lies inside the region.
func (r Region) Contains(low, high uintptr) bool {
	return low >= r.Low && high <= r.High
}

// MapsSource lists the current mappings of the process.
type MapsSource func() ([]Region, error)

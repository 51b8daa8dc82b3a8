package heuristics

import "github.com/kolkov/mudflap/internal/mudflap/object"

// StackBound accepts accesses inside the main thread stack. The stack is
// taken to extend from the top of the [stack] mapping down by the stack
// size resource limit.
type StackBound struct {
	source MapsSource
	limit  func() (uintptr, bool)
}

// NewStackBound creates the heuristic. A nil source reads the live process
// maps.
func NewStackBound(source MapsSource) *StackBound {
	if source == nil {
		source = SelfMaps
	}
	return &StackBound{source: source, limit: stackLimit}
}

// Name implements Heuristic.
func (h *StackBound) Name() string { return "stack-bound" }

// Bounds returns the inclusive stack range, or false when unknown.
func (h *StackBound) Bounds() (low, high uintptr, ok bool) {
	regions, err := h.source()
	if err != nil {
		return 0, 0, false
	}
	for _, r := range regions {
		if r.Path != "[stack]" {
			continue
		}
		size := r.High - r.Low + 1
		if lim, ok := h.limit(); ok && lim < size {
			size = lim
		}
		if size == 0 {
			return 0, 0, false
		}
		return object.ClampSub(r.High, size-1), r.High, true
	}
	return 0, 0, false
}

// Judge implements Heuristic.
func (h *StackBound) Judge(low, high uintptr, _ Registrar) Judgement {
	sl, sh, ok := h.Bounds()
	if ok && low >= sl && high <= sh {
		return Accept
	}
	return Undecided
}

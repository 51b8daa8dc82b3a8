package heuristics

// ProcMapSegment is the name given to Guess objects registered by ProcMap.
const ProcMapSegment = "/proc/self/maps segment"

// ProcMap registers the mapping containing an unknown access as a Guess
// object. It never decides by itself: the checker retries and finds the
// new Guess on its next search.
//
// Each segment is registered at most once. If the registrar could not
// insert it (because real objects overlap it), later accesses stay
// undecided and are reported.
type ProcMap struct {
	source MapsSource
	seen   map[Region]struct{}
}

// NewProcMap creates the heuristic. A nil source reads the live process maps.
func NewProcMap(source MapsSource) *ProcMap {
	if source == nil {
		source = SelfMaps
	}
	return &ProcMap{source: source, seen: make(map[Region]struct{})}
}

// Name implements Heuristic.
func (h *ProcMap) Name() string { return "proc-map" }

// Judge implements Heuristic.
func (h *ProcMap) Judge(low, high uintptr, reg Registrar) Judgement {
	regions, err := h.source()
	if err != nil {
		return Undecided
	}
	for _, r := range regions {
		if !r.Contains(low, high) {
			continue
		}
		if _, ok := h.seen[r]; !ok {
			h.seen[r] = struct{}{}
			reg.RegisterGuess(r.Low, r.High, ProcMapSegment)
		}
		break
	}
	return Undecided
}

// Forget drops the record of registered segments, e.g. after the runtime
// state is reset.
func (h *ProcMap) Forget() {
	clear(h.seen)
}

package heuristics

import (
	"os"
	"path/filepath"
	"sync"
)

// StartEnd accepts accesses inside the program image, i.e. the mappings
// backed by the executable file. An explicit range can be given instead.
type StartEnd struct {
	source MapsSource

	once      sync.Once
	low, high uintptr
	ok        bool
}

// NewStartEnd creates the heuristic over the executable's mappings. A nil
// source reads the live process maps.
func NewStartEnd(source MapsSource) *StartEnd {
	if source == nil {
		source = SelfMaps
	}
	return &StartEnd{source: source}
}

// NewStartEndRange creates the heuristic over the fixed range [low, high].
func NewStartEndRange(low, high uintptr) *StartEnd {
	h := &StartEnd{low: low, high: high, ok: low <= high}
	h.once.Do(func() {})
	return h
}

// Name implements Heuristic.
func (h *StartEnd) Name() string { return "start-end" }

// Bounds returns the image range, computed on first use.
func (h *StartEnd) Bounds() (low, high uintptr, ok bool) {
	h.once.Do(h.load)
	return h.low, h.high, h.ok
}

func (h *StartEnd) load() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	regions, err := h.source()
	if err != nil {
		return
	}
	for _, r := range regions {
		if r.Path != exe {
			continue
		}
		if !h.ok {
			h.low, h.high, h.ok = r.Low, r.High, true
			continue
		}
		h.low = min(h.low, r.Low)
		h.high = max(h.high, r.High)
	}
}

// Judge implements Heuristic.
func (h *StartEnd) Judge(low, high uintptr, _ Registrar) Judgement {
	sl, sh, ok := h.Bounds()
	if ok && low >= sl && high <= sh {
		return Accept
	}
	return Undecided
}

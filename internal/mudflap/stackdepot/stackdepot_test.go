package stackdepot

import (
	"bytes"
	"strings"
	"testing"
)

// TestCapture tests basic stack capture and retrieval.
func TestCapture(t *testing.T) {
	d := New()

	h := d.Capture(0, 8)
	if h == 0 {
		t.Fatal("Capture returned zero handle")
	}

	trace := d.Get(h)
	if trace == nil {
		t.Fatal("Get returned nil for valid handle")
	}
	if len(trace.PC) == 0 || len(trace.PC) > 8 {
		t.Errorf("expected 1..8 frames, got %d", len(trace.PC))
	}
}

// TestCapture_ZeroDepth tests that a zero backtrace option captures nothing.
func TestCapture_ZeroDepth(t *testing.T) {
	d := New()

	if h := d.Capture(0, 0); h != 0 {
		t.Errorf("expected zero handle, got %x", h)
	}
	if unique, captures := d.Stats(); unique != 0 || captures != 0 {
		t.Errorf("expected empty depot, got %d stacks / %d captures", unique, captures)
	}
}

// TestDeduplication tests that identical stacks share one entry and count
// references.
func TestDeduplication(t *testing.T) {
	d := New()

	var handles [3]uint64
	for i := range handles {
		handles[i] = d.Capture(0, 8)
	}

	if handles[0] != handles[1] || handles[1] != handles[2] {
		t.Fatalf("expected identical handles, got %x", handles)
	}
	if d.Get(handles[0]) != d.Get(handles[2]) {
		t.Error("expected the same Trace pointer")
	}
	if refs := d.Refs(handles[0]); refs != 3 {
		t.Errorf("expected 3 references, got %d", refs)
	}

	unique, captures := d.Stats()
	if unique != 1 || captures != 3 {
		t.Errorf("expected 1 stack / 3 captures, got %d / %d", unique, captures)
	}
}

// TestRelease tests that a trace lives until its last reference is dropped.
func TestRelease(t *testing.T) {
	d := New()

	h := d.Add([]uintptr{1, 2, 3})
	if d.Add([]uintptr{1, 2, 3}) != h {
		t.Fatal("expected deduplicated handle")
	}

	d.Release(h)
	if d.Get(h) == nil {
		t.Fatal("trace dropped while still referenced")
	}

	d.Release(h)
	if d.Get(h) != nil {
		t.Error("trace kept after last release")
	}

	// Releasing unknown handles must not panic.
	d.Release(h)
	d.Release(0)
}

// TestRetain tests that retained handles need one release per reference.
func TestRetain(t *testing.T) {
	d := New()

	h := d.Add([]uintptr{4, 5})
	if got := d.Retain(h); got != h {
		t.Fatalf("Retain returned %x, want %x", got, h)
	}
	if d.Retain(0) != 0 {
		t.Error("retaining the zero handle must return zero")
	}

	d.Release(h)
	if d.Refs(h) != 1 {
		t.Errorf("expected 1 reference, got %d", d.Refs(h))
	}
	d.Release(h)
	if d.Get(h) != nil {
		t.Error("trace kept after last release")
	}
}

// TestAdd_CopiesInput tests that the depot does not alias the caller's slice.
func TestAdd_CopiesInput(t *testing.T) {
	d := New()

	pcs := []uintptr{10, 20}
	h := d.Add(pcs)
	pcs[0] = 99

	if got := d.Get(h).PC[0]; got != 10 {
		t.Errorf("stored trace was modified: %d", got)
	}
}

// TestDifferentStacks tests that different call paths get different handles.
func TestDifferentStacks(t *testing.T) {
	d := New()

	h1 := captureA(d)
	h2 := captureB(d)

	if h1 == h2 {
		t.Error("expected different handles for different call paths")
	}
}

func captureA(d *Depot) uint64 { return d.Capture(0, 8) }
func captureB(d *Depot) uint64 { return d.Capture(0, 8) }

// TestFormat tests that formatted traces name the capturing function.
func TestFormat(t *testing.T) {
	d := New()
	h := captureA(d)

	var buf bytes.Buffer
	d.Format(&buf, h, "      ")
	out := buf.String()

	if !strings.Contains(out, "captureA") {
		t.Errorf("expected captureA in trace, got:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if !strings.HasPrefix(line, "      ") {
			t.Errorf("line not indented: %q", line)
		}
	}

	buf.Reset()
	d.Format(&buf, 12345, "  ")
	if buf.Len() != 0 {
		t.Errorf("expected no output for unknown handle, got %q", buf.String())
	}
}

// TestReset tests that Reset discards all traces.
func TestReset(t *testing.T) {
	d := New()
	h := d.Capture(0, 4)

	d.Reset()
	if d.Get(h) != nil {
		t.Error("trace survived Reset")
	}
}

func BenchmarkCapture(b *testing.B) {
	d := New()
	for i := 0; i < b.N; i++ {
		d.Capture(0, 4)
	}
}

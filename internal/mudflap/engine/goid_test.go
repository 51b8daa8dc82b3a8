package engine

import (
	"bytes"
	"sync"
	"testing"

	"github.com/kolkov/mudflap/internal/mudflap/object"
	"github.com/kolkov/mudflap/internal/mudflap/options"
)

// TestGoroutineID_MatchesStack compares the id used by the guard with the
// runtime.Stack header on several goroutines.
func TestGoroutineID_MatchesStack(t *testing.T) {
	if got, want := goroutineIDFast(), goroutineIDSlow(); got != want {
		t.Fatalf("goroutineIDFast() = %d, runtime.Stack says %d", got, want)
	}
	if !fastGID {
		t.Fatal("fast goroutine id disabled although it matches runtime.Stack")
	}

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if fast, slow := goroutineID(), goroutineIDSlow(); fast != slow {
				t.Errorf("goroutine %d: goroutineID() = %d, runtime.Stack says %d", i, fast, slow)
			}
			ids[i] = goroutineID()
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, id := range ids {
		if id <= 0 || seen[id] {
			t.Errorf("Expected unique positive ids, got %v", ids)
			break
		}
		seen[id] = true
	}
}

// TestCheck_CacheHitDoesNotAllocate keeps the cache-hit path free of stack
// walks and allocations.
func TestCheck_CacheHitDoesNotAllocate(t *testing.T) {
	o := options.Default()
	o.HeurProcMap = false
	r := New(o, WithOutput(&bytes.Buffer{}))
	r.Register(0x1000, 4096, object.TypeHeap, "buf")
	r.Check(0x1000, 8, "")

	allocs := testing.AllocsPerRun(100, func() {
		r.Check(0x1000, 8, "")
	})
	if allocs != 0 {
		t.Errorf("Expected 0 allocations per cache hit, got %v", allocs)
	}
}

func BenchmarkGoroutineID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = goroutineID()
	}
}

func BenchmarkGoroutineIDSlow(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = goroutineIDSlow()
	}
}

func BenchmarkCheck_Nop(b *testing.B) {
	o := options.Default()
	o.Mode = options.ModeNop
	r := New(o, WithOutput(&bytes.Buffer{}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Check(0x1000, 8, "")
	}
}

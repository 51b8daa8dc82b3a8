package lookupcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_BoundsParams(t *testing.T) {
	tests := []struct {
		name     string
		mask     uintptr
		shift    uint
		wantSize int
	}{
		{"default", 1023, 2, 1024},
		{"masked to max", 0xffffff, 2, MaxSize},
		{"single slot", 0, 0, 1},
		{"huge shift", 15, 200, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.mask, tt.shift)
			assert.Equal(t, tt.wantSize, c.Size())
			assert.Less(t, c.Index(^uintptr(0)), uintptr(c.Size()))
		})
	}
}

func TestCache_IndexAndCovers(t *testing.T) {
	c := New(1023, 2)

	assert.Equal(t, uintptr(1), c.Index(4))
	assert.Equal(t, uintptr(0), c.Index(4096))

	idx := c.Index(0x1004)
	assert.False(t, c.Covers(idx, 0x1004, 0x1007), "empty slot covers nothing")

	c.Set(idx, 0x1000, 0x10ff)
	assert.True(t, c.Covers(idx, 0x1004, 0x1007))
	assert.True(t, c.Covers(idx, 0x1000, 0x10ff))
	assert.False(t, c.Covers(idx, 0x10fc, 0x1100))
	assert.Equal(t, Entry{0x1000, 0x10ff}, c.At(idx))
}

func TestCache_Invalidate(t *testing.T) {
	c := New(1023, 2)

	// Object [0x1000, 0x100f] hashes to four slots.
	for p := uintptr(0x1000); p <= 0x100f; p += 4 {
		c.Set(c.Index(p), 0x1000, 0x100f)
	}
	// A neighbour sharing no slot must survive.
	c.Set(c.Index(0x1010), 0x1010, 0x101f)
	// A different object cached in an overlapping slot must survive.
	c.Set(c.Index(0x100c), 0x100c, 0x100f)

	assert.Equal(t, 3, c.Invalidate(0x1000, 0x100f))
	for p := uintptr(0x1000); p < 0x100c; p += 4 {
		assert.True(t, c.At(c.Index(p)).Empty())
	}
	assert.Equal(t, Entry{0x1010, 0x101f}, c.At(c.Index(0x1010)))
	assert.Equal(t, Entry{0x100c, 0x100f}, c.At(c.Index(0x100c)))
}

func TestCache_InvalidateWrapsAndSpans(t *testing.T) {
	c := New(15, 0)

	// [14, 17] wraps from slot 14 to slot 1.
	c.Set(14, 14, 17)
	c.Set(1, 14, 17)
	c.Set(5, 14, 17)
	assert.Equal(t, 2, c.Invalidate(14, 17), "slot 5 is not reachable from [14,17]")

	// A range wider than the table reaches every slot.
	c.Set(3, 100, 1000)
	c.Set(9, 100, 1000)
	assert.Equal(t, 2, c.Invalidate(100, 1000))
}

func TestCache_Stats(t *testing.T) {
	c := New(7, 0)

	used, unused, peak := c.Stats()
	assert.Equal(t, 0, used)
	assert.Equal(t, 8, unused)
	assert.Zero(t, peak)

	for i := 0; i < 3; i++ {
		old := c.At(2)
		c.Set(2, uintptr(10+i), uintptr(20+i))
		c.NoteReuse(2, old)
	}
	old := c.At(2)
	c.Set(2, old.Low, old.High)
	c.NoteReuse(2, old)

	used, unused, peak = c.Stats()
	assert.Equal(t, 1, used)
	assert.Equal(t, 7, unused)
	assert.Equal(t, uint64(3), peak, "unchanged contents are not reuse")

	c.Clear()
	used, _, peak = c.Stats()
	assert.Zero(t, used)
	assert.Equal(t, uint64(3), peak)
}

func BenchmarkCache_Covers(b *testing.B) {
	c := New(1023, 2)
	c.Set(c.Index(0x1000), 0x1000, 0x1fff)
	idx := c.Index(0x1000)

	for i := 0; i < b.N; i++ {
		c.Covers(idx, 0x1000, 0x1007)
	}
}

// Package lookupcache implements the direct-mapped lookup cache consulted
// before every object tree search.
//
// A slot remembers the bounds of the object that last satisfied a check for
// an address hashing to it. The hash is (ptr >> shift) & mask. A slot with
// Low == High == 0 is empty; no object can be registered at [0, 0] because
// the first byte of memory is never valid.
//
// The cache is not a source of truth: stale entries are harmless only as
// long as the unregistrar invalidates every slot naming a removed object.
package lookupcache

// MaxSize is the maximum number of slots.
const MaxSize = 4096

// Entry is one cache slot.
type Entry struct {
	Low, High uintptr
}

// Empty reports whether the slot holds no bounds.
func (e Entry) Empty() bool {
	return e.Low == 0 && e.High == 0
}

// Cache is a direct-mapped table of object bounds.
//
// Thread Safety: NOT safe for concurrent use; callers hold the runtime lock.
type Cache struct {
	entries [MaxSize]Entry
	reuse   [MaxSize]uint64
	mask    uintptr
	shift   uint
}

// New creates a cache using mask and shift for hashing. The mask is bounded
// to MaxSize-1 and the shift to the pointer width.
func New(mask uintptr, shift uint) *Cache {
	c := &Cache{}
	c.SetParams(mask, shift)
	return c
}

// SetParams changes the hash parameters and empties the cache.
func (c *Cache) SetParams(mask uintptr, shift uint) {
	c.mask = mask & (MaxSize - 1)
	c.shift = min(shift, 63)
	c.Clear()
}

// Size returns the number of addressable slots.
func (c *Cache) Size() int {
	return int(c.mask) + 1
}

// Index returns the slot for ptr.
func (c *Cache) Index(ptr uintptr) uintptr {
	return (ptr >> c.shift) & c.mask
}

// At returns slot idx.
func (c *Cache) At(idx uintptr) Entry {
	return c.entries[idx&c.mask]
}

// Set overwrites slot idx.
func (c *Cache) Set(idx, low, high uintptr) {
	c.entries[idx&c.mask] = Entry{Low: low, High: high}
}

// Covers reports whether slot idx is non-empty and contains [low, high].
func (c *Cache) Covers(idx, low, high uintptr) bool {
	e := c.entries[idx&c.mask]
	return !e.Empty() && e.Low <= low && high <= e.High
}

// Invalidate clears every slot an address in [low, high] can hash to whose
// bounds are exactly (low, high). It returns the number of slots cleared.
func (c *Cache) Invalidate(low, high uintptr) int {
	first, last := c.Index(low), c.Index(high)
	span := (high >> c.shift) - (low >> c.shift)

	cleared := 0
	drop := func(idx uintptr) {
		if e := c.entries[idx]; e.Low == low && e.High == high && !e.Empty() {
			c.entries[idx] = Entry{}
			cleared++
		}
	}

	// The range reaches every slot.
	if span >= uintptr(c.Size()) {
		for idx := uintptr(0); idx <= c.mask; idx++ {
			drop(idx)
		}
		return cleared
	}
	for idx := first; ; idx = (idx + 1) & c.mask {
		drop(idx)
		if idx == last {
			break
		}
	}
	return cleared
}

// Clear empties every slot. Reuse counters are kept.
func (c *Cache) Clear() {
	c.entries = [MaxSize]Entry{}
}

// NoteReuse increments the reuse counter of slot idx when its contents
// differ from old.
func (c *Cache) NoteReuse(idx uintptr, old Entry) {
	idx &= c.mask
	if c.entries[idx] != old {
		c.reuse[idx]++
	}
}

// Stats returns the number of used and unused slots and the highest reuse
// count of any slot.
func (c *Cache) Stats() (used, unused int, peakReuse uint64) {
	for idx := 0; idx < c.Size(); idx++ {
		if c.entries[idx].Empty() {
			unused++
		} else {
			used++
		}
		peakReuse = max(peakReuse, c.reuse[idx])
	}
	return used, unused, peakReuse
}

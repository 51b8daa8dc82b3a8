// Package cemetery keeps recently unregistered objects for diagnostics.
//
// Each object type has its own fixed-size circular row. Burying an object
// into a full row evicts the oldest occupant, which the caller must release
// (its backtraces are held in the stack depot).
//
// The cemetery is consulted only when reporting a violation: an access that
// hits a recently freed object is almost always a use-after-free, and naming
// that object makes the report actionable.
package cemetery

import (
	"github.com/pkg/errors"

	"github.com/kolkov/mudflap/internal/mudflap/object"
)

// MaxCapacity bounds the per-type row size.
const MaxCapacity = 256

// Cemetery holds per-type rows of retired objects.
type Cemetery struct {
	capacity int
	rows     [object.NumTypes][]*object.Object
	next     [object.NumTypes]int
	count    int
}

// New creates a cemetery with capacity slots per type. Capacity is clamped
// to [0, MaxCapacity].
func New(capacity int) *Cemetery {
	capacity = max(0, min(capacity, MaxCapacity))
	c := &Cemetery{capacity: capacity}
	for i := range c.rows {
		c.rows[i] = make([]*object.Object, capacity)
	}
	return c
}

// Capacity returns the number of slots per type.
func (c *Cemetery) Capacity() int {
	return c.capacity
}

// Len returns the number of buried objects across all types.
func (c *Cemetery) Len() int {
	return c.count
}

// Bury places o into its type's row and returns the evicted occupant, if
// any. With zero capacity nothing is kept and o itself is returned.
func (c *Cemetery) Bury(o *object.Object) *object.Object {
	if c.capacity == 0 {
		return o
	}
	t := o.Type
	if !t.Valid() {
		t = object.TypeUnknown
	}

	i := c.next[t]
	evicted := c.rows[t][i]
	c.rows[t][i] = o
	c.next[t] = (i + 1) % c.capacity
	if evicted == nil {
		c.count++
	}
	return evicted
}

// Find searches every row backward from the most recent burial for objects
// overlapping [low, high]. The search window starts at one slot and widens
// (1, 3, 7, ...) until at least one match is found or the whole row has
// been scanned. It returns up to max matches and the total number found.
func (c *Cemetery) Find(low, high uintptr, max int) ([]*object.Object, int) {
	if c.capacity == 0 {
		return nil, 0
	}

	var out []*object.Object
	count := 0
	for recollection := 0; ; recollection = recollection*2 + 1 {
		if recollection >= c.capacity {
			recollection = c.capacity - 1
		}

		out, count = out[:0], 0
		for t := range c.rows {
			row := c.rows[t]
			slot := c.next[t]
			for i := 0; i <= recollection; i++ {
				slot--
				if slot < 0 {
					slot = c.capacity - 1
				}
				o := row[slot]
				if o == nil || !o.Overlaps(low, high) {
					continue
				}
				count++
				if max < 0 || len(out) < max {
					out = append(out, o)
				}
			}
		}

		if count > 0 || recollection == c.capacity-1 {
			return out, count
		}
	}
}

// Walk visits every buried object until fn returns false.
func (c *Cemetery) Walk(fn func(o *object.Object) bool) {
	for t := range c.rows {
		for _, o := range c.rows[t] {
			if o != nil && !fn(o) {
				return
			}
		}
	}
}

// Clear empties every row and returns the objects that were held so their
// resources can be released.
func (c *Cemetery) Clear() []*object.Object {
	var out []*object.Object
	for t := range c.rows {
		for i, o := range c.rows[t] {
			if o != nil {
				out = append(out, o)
				c.rows[t][i] = nil
			}
		}
		c.next[t] = 0
	}
	c.count = 0
	return out
}

// Validate checks that every buried object is marked deallocated and sits
// in the row of its type.
func (c *Cemetery) Validate() error {
	n := 0
	for t := range c.rows {
		for i, o := range c.rows[t] {
			if o == nil {
				continue
			}
			n++
			if !o.Deallocated {
				return errors.Errorf("cemetery[%d][%d] holds live object %s", t, i, o)
			}
			if o.Type.Valid() && int(o.Type) != t {
				return errors.Errorf("cemetery[%d][%d] holds %s of another type", t, i, o)
			}
		}
	}
	if n != c.count {
		return errors.Errorf("cemetery holds %d objects, counted %d", n, c.count)
	}
	return nil
}

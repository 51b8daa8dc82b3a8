// Package objtree implements the live object database of the mudflap runtime.
//
// The database is a binary search tree keyed by address interval. Because
// live objects never overlap, interval order is a total order: for every
// node, all objects in the left subtree end below the node's Low and all
// objects in the right subtree start above the node's High.
//
// # Self-Adjustment
//
// The tree has no balance factor. Instead, every overlap search rotates a
// child up one level when its CheckCount strictly exceeds both its parent's
// and its sibling's. Frequently checked objects drift toward the root, which
// approximates a frequency-weighted tree. Rotations are a performance
// heuristic only: skipping them never changes search results.
//
// # Thread Safety
//
// Tree is NOT safe for concurrent use. The engine serializes all access
// under its runtime lock.
package objtree

import (
	"github.com/pkg/errors"

	"github.com/kolkov/mudflap/internal/mudflap/object"
)

var (
	// ErrOverlap is returned by Insert when the new object overlaps a live one.
	// Callers must resolve overlaps before inserting.
	ErrOverlap = errors.New("object overlaps a live object")

	// ErrNotFound is returned by Remove when the object is not in the tree.
	ErrNotFound = errors.New("object not found in tree")
)

type node struct {
	obj         *object.Object
	left, right *node
}

// Tree is the self-adjusting interval tree of live objects.
type Tree struct {
	root *node

	// count is the number of live objects.
	count int

	// promoteLeft alternates which child is promoted on removal so that
	// repeated removals do not skew the tree to one side.
	promoteLeft bool

	// rotLeft and rotRight count rotations performed during searches.
	rotLeft, rotRight uint64
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of live objects.
func (t *Tree) Len() int {
	return t.count
}

// Rotations returns the number of left and right rotations performed so far.
func (t *Tree) Rotations() (left, right uint64) {
	return t.rotLeft, t.rotRight
}

// Find returns the single live object overlapping [low, high], or nil when
// zero or more than one object overlaps.
func (t *Tree) Find(low, high uintptr) *object.Object {
	var buf [1]*object.Object
	out := buf[:0]
	if t.find(low, high, &t.root, &out, 1) != 1 {
		return nil
	}
	return out[0]
}

// FindAll returns up to max live objects overlapping [low, high] in address
// order, together with the total number of overlapping objects (which may
// exceed max). A negative max means no limit.
func (t *Tree) FindAll(low, high uintptr, max int) ([]*object.Object, int) {
	var out []*object.Object
	if max > 0 {
		out = make([]*object.Object, 0, max)
	}
	count := t.find(low, high, &t.root, &out, max)
	return out, count
}

// find is the overlap search. It recurses left only when the query starts
// below the node, right only when it ends above the node, and rotates a
// hot child up on the way back.
func (t *Tree) find(low, high uintptr, link **node, out *[]*object.Object, max int) int {
	n := *link
	if n == nil {
		return 0
	}

	count := 0
	if low < n.obj.Low {
		count += t.find(low, high, &n.left, out, max)
	}

	if n.obj.Overlaps(low, high) {
		count++
		if max < 0 || len(*out) < max {
			*out = append(*out, n.obj)
		}
	}

	if high > n.obj.High {
		count += t.find(low, high, &n.right, out, max)
	}

	t.rotate(link)
	return count
}

// rotate performs a single rotation at *link when one child has a strictly
// higher CheckCount than both the node and its sibling.
func (t *Tree) rotate(link **node) {
	n := *link
	l, r := n.left, n.right

	switch {
	case l != nil && l.obj.CheckCount > n.obj.CheckCount &&
		(r == nil || l.obj.CheckCount > r.obj.CheckCount):
		*link = l
		n.left = l.right
		l.right = n
		t.rotLeft++
	case r != nil && r.obj.CheckCount > n.obj.CheckCount &&
		(l == nil || r.obj.CheckCount > l.obj.CheckCount):
		*link = r
		n.right = r.left
		r.left = n
		t.rotRight++
	}
}

// Insert links o into the tree as a new leaf.
func (t *Tree) Insert(o *object.Object) error {
	if err := link(&node{obj: o}, &t.root); err != nil {
		return err
	}
	t.count++
	return nil
}

// link attaches the subtree rooted at n below *at. Since a detached subtree
// lies entirely on one side of any node it does not overlap, comparing its
// root is enough to route the whole subtree.
func link(n *node, at **node) error {
	for *at != nil {
		cur := *at
		switch {
		case n.obj.High < cur.obj.Low:
			at = &cur.left
		case n.obj.Low > cur.obj.High:
			at = &cur.right
		default:
			return errors.Wrapf(ErrOverlap, "inserting %s over %s", n.obj, cur.obj)
		}
	}
	*at = n
	return nil
}

// Remove unlinks o (by identity) from the tree. One child takes the removed
// node's place and the other child is re-linked beneath it; the promoted
// side alternates between calls.
func (t *Tree) Remove(o *object.Object) error {
	at := &t.root
	for *at != nil {
		cur := *at
		if cur.obj == o {
			t.promoteLeft = !t.promoteLeft

			promoted, other := cur.right, cur.left
			if t.promoteLeft {
				promoted, other = cur.left, cur.right
			}
			*at = promoted
			if other != nil {
				if err := link(other, at); err != nil {
					return err
				}
			}
			cur.left, cur.right = nil, nil
			t.count--
			return nil
		}

		switch {
		case o.High < cur.obj.Low:
			at = &cur.left
		case o.Low > cur.obj.High:
			at = &cur.right
		default:
			return errors.Wrapf(ErrNotFound, "removing %s, found %s", o, cur.obj)
		}
	}
	return errors.Wrapf(ErrNotFound, "removing %s", o)
}

// Walk visits live objects in address order until fn returns false.
func (t *Tree) Walk(fn func(o *object.Object) bool) {
	walk(t.root, fn)
}

func walk(n *node, fn func(o *object.Object) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n.obj) && walk(n.right, fn)
}

// Objects returns all live objects in address order.
func (t *Tree) Objects() []*object.Object {
	objs := make([]*object.Object, 0, t.count)
	t.Walk(func(o *object.Object) bool {
		objs = append(objs, o)
		return true
	})
	return objs
}

// Rebalance rebuilds the tree into a height-balanced shape without changing
// its contents.
func (t *Tree) Rebalance() {
	objs := t.Objects()
	t.root = build(objs)
}

func build(objs []*object.Object) *node {
	if len(objs) == 0 {
		return nil
	}
	mid := len(objs) / 2
	return &node{
		obj:   objs[mid],
		left:  build(objs[:mid]),
		right: build(objs[mid+1:]),
	}
}

// Clear removes every object from the tree.
func (t *Tree) Clear() {
	t.root = nil
	t.count = 0
}

// Validate checks the ordering invariant of the whole tree and the object
// count. It is expensive and only used for internal checking.
func (t *Tree) Validate() error {
	n, err := validate(t.root, 0, object.MaxAddr)
	if err != nil {
		return err
	}
	if n != t.count {
		return errors.Errorf("tree holds %d objects, counted %d", n, t.count)
	}
	return nil
}

// validate checks that every object below n lies inside [min, max].
func validate(n *node, min, max uintptr) (int, error) {
	if n == nil {
		return 0, nil
	}
	o := n.obj
	if o.Low > o.High {
		return 0, errors.Errorf("object %s has inverted bounds", o)
	}
	if o.Deallocated {
		return 0, errors.Errorf("deallocated object %s in live tree", o)
	}
	if o.Low < min || o.High > max {
		return 0, errors.Errorf("object %s outside subtree range [%#x,%#x]", o, min, max)
	}

	l := 0
	if n.left != nil {
		if o.Low == 0 {
			return 0, errors.Errorf("object %s at address zero has a left child", o)
		}
		var err error
		if l, err = validate(n.left, min, o.Low-1); err != nil {
			return 0, err
		}
	}
	r := 0
	if n.right != nil {
		if o.High == object.MaxAddr {
			return 0, errors.Errorf("object %s at the top of memory has a right child", o)
		}
		var err error
		if r, err = validate(n.right, o.High+1, max); err != nil {
			return 0, err
		}
	}
	return l + r + 1, nil
}

// depth returns the height of the tree; used by tests.
func (t *Tree) depth() int {
	var d func(n *node) int
	d = func(n *node) int {
		if n == nil {
			return 0
		}
		return 1 + max(d(n.left), d(n.right))
	}
	return d(t.root)
}

package tree

import (
	"github.com/flexmod/flextree/branch"
	"github.com/flexmod/flextree/leaf"
)

// RangeIterator walks the leaf sibling chain over [start, end), the same
// forward links leaves already carry for this reason. It holds no lock
// and no snapshot: a concurrent Insert that splits a leaf ahead of the
// cursor is visible to it, exactly as walking a live linked list would
// be.
type RangeIterator struct {
	end     string
	hasEnd  bool
	current *leaf.Leaf
	index   int
	done    bool
	key     string
	value   Value
}

// Range returns an iterator over every key in [start, end). A nil end
// scans to the end of the tree.
func (t *Tree) Range(start, end []byte) *RangeIterator {
	startKey := string(start)

	var cur *leaf.Leaf
	if t.height == 0 {
		cur = t.rootLeaf()
	} else {
		b := t.rootBranch()
		height := t.height
		for height > 1 {
			idx := b.UpperBound(startKey)
			b = (*branch.Branch)(b.ChildAt(idx))
			height--
		}
		idx := b.UpperBound(startKey)
		cur = (*leaf.Leaf)(b.ChildAt(idx))
	}

	it := &RangeIterator{current: cur, index: cur.UpperBound(startKey)}
	if end != nil {
		it.end = string(end)
		it.hasEnd = true
	}
	return it
}

// Next advances the iterator, returning false once the range (or the
// tree) is exhausted.
func (it *RangeIterator) Next() bool {
	if it.done {
		return false
	}

	for it.current != nil && it.index >= it.current.Size() {
		it.current = it.current.Sibling()
		it.index = 0
	}

	if it.current == nil {
		it.done = true
		return false
	}

	key := it.current.KeyAt(it.index)
	if it.hasEnd && key >= it.end {
		it.done = true
		return false
	}

	it.key = key
	it.value = Value(it.current.ValueAt(it.index))
	it.index++
	return true
}

// Key returns the key at the iterator's current position. Only valid
// after a call to Next that returned true.
func (it *RangeIterator) Key() []byte { return []byte(it.key) }

// Value returns the value at the iterator's current position. Only
// valid after a call to Next that returned true.
func (it *RangeIterator) Value() Value { return it.value }

// Package branch implements the B+-tree internal (branch) page: a Flex
// specialized to route descent toward N+1 children given N separator
// keys, with the (N+1)th ("tail") child carried in the header rather
// than the directory.
package branch

import (
	"unsafe"

	"github.com/flexmod/flextree/flex"
	"github.com/flexmod/flextree/leaf"
)

// Branch is a Flex page holding separator keys paired with child
// pointers. Its header's Child field holds the tail child — the
// implicit (N+1)th child reached when a search key compares greater
// than every separator.
//
// Directory entries hold the same PtrSize-wide pointer word a leaf
// entry would, for layout-size fidelity with leaf pages, but a branch's
// pointer word addresses another page the tree itself owns rather than
// an externally-owned value. Go's garbage collector does not scan plain
// byte buffers for pointers, so children is a companion map, keyed by
// each entry's stable heap offset, that holds the actual traced
// *leaf.Leaf/*Branch pointer and is what every read in this file
// actually consults; the bytes in data exist so a branch page's byte
// accounting (CanFit, UnusedBytes) matches a leaf page's exactly.
type Branch struct {
	header   flex.Header
	data     flex.Flex
	children map[uint16]flex.Node
}

func newBranch(tail flex.Node) *Branch {
	return &Branch{
		header:   flex.NewHeader(tail),
		children: make(map[uint16]flex.Node),
	}
}

// New builds a branch with a single separator routing to left (below
// separator) and right (at or above separator, the tail child).
func New(left, right flex.Node, separator string) *Branch {
	b := newBranch(right)
	node := b.addChildEntry(separator, left)
	b.data.InsertStack(&b.header, 0, node)
	return b
}

func newFromRange(nodes []flex.Slot, src *Branch, tail flex.Node, extra *flex.Slot, extraKey string, extraChild flex.Node) *Branch {
	b := newBranch(tail)
	for _, node := range nodes {
		key, child := src.overflowChildEntry(node, extraKey, extraChild)
		newNode := b.addChildEntry(key, child)
		b.data.InsertStack(&b.header, int(b.header.NodeCount), newNode)
	}
	if extra != nil {
		key, child := src.overflowChildEntry(*extra, extraKey, extraChild)
		newNode := b.addChildEntry(key, child)
		b.data.InsertStack(&b.header, int(b.header.NodeCount), newNode)
	}
	return b
}

func (b *Branch) addChildEntry(key string, child flex.Node) flex.Slot {
	s := b.data.AddHeapEntry(&b.header, key, uintptr(child))
	b.children[s.Start] = child
	return s
}

func (b *Branch) childEntry(s flex.Slot) (string, flex.Node) {
	key, _ := b.data.GetHeapEntry(&b.header, s)
	return key, b.children[s.Start]
}

func (b *Branch) overflowChildEntry(s flex.Slot, extraKey string, extraChild flex.Node) (string, flex.Node) {
	if s.Overflow() {
		return extraKey, extraChild
	}
	return b.childEntry(s)
}

func (b *Branch) swapChildAt(index int, child flex.Node) flex.Node {
	s := b.data.SlotAt(index)
	old := b.children[s.Start]
	b.data.SwapPtrAt(&b.header, index, uintptr(child))
	b.children[s.Start] = child
	return old
}

// Size returns the number of separator keys (not children: Size()+1).
func (b *Branch) Size() int { return int(b.header.NodeCount) }

// UnusedBytes returns the free space between the directory and the heap.
func (b *Branch) UnusedBytes() int {
	return int(b.header.KeyPos) - int(b.header.NodeCount)*flex.SlotSize
}

// PayloadBytes returns the number of bytes currently used by the heap.
func (b *Branch) PayloadBytes() int {
	return flex.DataLen - int(b.header.KeyPos)
}

// KeyAt returns the separator key at directory index.
func (b *Branch) KeyAt(index int) string { return b.data.KeyAt(&b.header, index) }

// ChildAt returns the child reached when a search key compares at or
// above KeyAt(index-1) and below KeyAt(index); ChildAt(Size()) is the
// tail child.
func (b *Branch) ChildAt(index int) flex.Node {
	if index == b.Size() {
		if b.header.Child == nil {
			flex.Violatef("branch missing its tail child")
		}
		return b.header.Child
	}
	_, child := b.childEntry(b.data.SlotAt(index))
	return child
}

// CanFit reports whether key plus a child pointer and a slot descriptor
// still fits in the unused space.
func (b *Branch) CanFit(key string) bool {
	newEntrySize := len(key) + flex.PtrSize + flex.SlotSize
	return b.UnusedBytes() >= newEntrySize
}

func (b *Branch) getUpperBound(key string) int {
	nodes := b.data.Nodes(&b.header)
	hint := flex.Fingerprint(key)
	slotNr := 0

	for _, node := range nodes {
		if node.FirstBytes >= hint {
			nodeKey, _ := b.childEntry(node)
			if nodeKey > key {
				return slotNr
			}
		}
		slotNr++
	}

	return slotNr
}

// Insert routes key/value toward the child at index getUpperBound(key),
// height-1 levels below this branch, recursing into another *Branch or,
// at height == 1, inserting directly into a *leaf.Leaf. A child split is
// absorbed into this branch's own directory via InsertLeafAt/
// InsertBranchAt, which may in turn split this branch.
func (b *Branch) Insert(key string, value uintptr, height int) flex.Result {
	index := b.getUpperBound(key)
	child := b.ChildAt(index)

	if height == 1 {
		res := (*leaf.Leaf)(child).Insert(key, value)
		if res.Split == nil {
			return res
		}
		return b.InsertLeafAt(index, res.Split.Separator, res.Split.Sibling)
	}

	res := (*Branch)(child).Insert(key, value, height-1)
	if res.Split == nil {
		return res
	}
	return b.InsertBranchAt(index, res.Split.Separator, res.Split.Sibling)
}

// Get routes key toward the child at index getUpperBound(key), height-1
// levels below this branch, recursing the same way Insert does.
func (b *Branch) Get(key string, height int) (uintptr, bool) {
	index := b.getUpperBound(key)
	child := b.ChildAt(index)

	if height == 1 {
		return (*leaf.Leaf)(child).Get(key)
	}
	return (*Branch)(child).Get(key, height-1)
}

// insertAt commits a (key, child) pair at index, splitting this branch
// if it doesn't fit. It mirrors Leaf.Insert's split machinery but keeps
// this branch as the RIGHT half in place on split — the opposite
// asymmetry from a leaf, since a branch's "tail child" bookkeeping makes
// keeping the right half in place the simpler rebuild.
func (b *Branch) insertAt(index int, key string, child flex.Node) flex.Result {
	if b.CanFit(key) {
		node := b.addChildEntry(key, child)
		b.data.InsertStack(&b.header, index, node)
		return flex.Result{Outcome: flex.Inserted}
	}

	overflow := b.data.InsertStackOverflow(&b.header, index, flex.OverflowSlot(flex.Fingerprint(key)))

	splitIndex, separator := b.getSplit(overflow, key, child)
	separator = string([]byte(separator))

	nodes := b.data.Nodes(&b.header)
	leftNodes, midAndRight := nodes[:splitIndex], nodes[splitIndex:]
	midNode, rightNodes := midAndRight[0], midAndRight[1:]

	_, midChild := b.overflowChildEntry(midNode, key, child)

	left := newFromRange(leftNodes, b, midChild, nil, key, child)
	right := newFromRange(rightNodes, b, b.header.Child, &overflow, key, child)

	// Become the right subtree in place; left is handed to the caller
	// as the new sibling propagated upward alongside separator.
	*b = *right
	b.children = right.children

	return flex.Result{
		Outcome: flex.Inserted,
		Split: &flex.Split{
			Separator: separator,
			Sibling:   unsafe.Pointer(left),
		},
	}
}

func (b *Branch) getSplit(overflow flex.Slot, newKey string, newChild flex.Node) (int, string) {
	midpoint := (b.Size() + 1) / 2
	key := b.data.KeyAtOverflow(&b.header, midpoint, newKey, uintptr(newChild), overflow)
	return midpoint, key
}

// fixLeafInsert swaps rightHalf in as the child pointer at index (or the
// tail child, when index is past the last separator), returning the
// pointer that was there before — which, since a split leaf stays in
// place as its own left half, is the address of that left half. Needed
// only when the split child was a leaf: this branch's existing pointer
// at index referred to the whole original leaf range and must now point
// at rightHalf, with the left half inserted as a new entry instead.
func (b *Branch) fixLeafInsert(index int, rightHalf flex.Node) flex.Node {
	if index < b.Size() {
		return b.swapChildAt(index, rightHalf)
	}
	old := b.header.Child
	b.header.Child = rightHalf
	return old
}

// InsertLeafAt absorbs a leaf child's split: rightHalf is the newly
// allocated sibling; the leaf itself mutated in place to become the
// left half, so fixLeafInsert both swaps rightHalf into this branch's
// existing slot and recovers that left half's address to insert as a
// new entry at the same index, paired with separator.
func (b *Branch) InsertLeafAt(index int, separator string, rightHalf flex.Node) flex.Result {
	leftHalf := b.fixLeafInsert(index, rightHalf)
	return b.insertAt(index, separator, leftHalf)
}

// InsertBranchAt absorbs a branch child's split directly: the split
// already returned the correct (left, separator) pair to insert, since
// branches become the right half in place (no pointer to fix up).
func (b *Branch) InsertBranchAt(index int, separator string, newChild flex.Node) flex.Result {
	return b.insertAt(index, separator, newChild)
}

// UpperBound returns the directory index Get/Insert should route
// through for key.
func (b *Branch) UpperBound(key string) int { return b.getUpperBound(key) }

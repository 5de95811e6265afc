// Package leaf implements the B+-tree leaf page: a Flex specialized to
// hold (key, opaque value) entries sorted by key, with a forward sibling
// link for range scans.
package leaf

import (
	"unsafe"

	"github.com/flexmod/flextree/flex"
)

const noBest = 1 << 16

// Leaf is a Flex page holding sorted (key, value) entries. Its header's
// Child field, unused by the entry directory itself, is reused as the
// forward sibling link threading leaves left to right.
type Leaf struct {
	header flex.Header
	data   flex.Flex
}

// New returns an empty leaf with no sibling.
func New() *Leaf {
	return &Leaf{header: flex.NewHeader(nil)}
}

func newFromRange(nodes []flex.Slot, src *Leaf, extra *flex.Slot, extraKey string, extraValue uintptr) *Leaf {
	l := New()
	for _, node := range nodes {
		key, value := src.data.GetOverflowHeapEntry(&src.header, node, extraKey, extraValue)
		newNode := l.data.AddHeapEntry(&l.header, key, value)
		l.data.InsertStack(&l.header, int(l.header.NodeCount), newNode)
	}
	if extra != nil {
		key, value := src.data.GetOverflowHeapEntry(&src.header, *extra, extraKey, extraValue)
		newNode := l.data.AddHeapEntry(&l.header, key, value)
		l.data.InsertStack(&l.header, int(l.header.NodeCount), newNode)
	}
	return l
}

// Size returns the number of entries currently stored.
func (l *Leaf) Size() int { return int(l.header.NodeCount) }

// UnusedBytes returns the free space between the directory and the heap.
func (l *Leaf) UnusedBytes() int {
	return int(l.header.KeyPos) - int(l.header.NodeCount)*flex.SlotSize
}

// PayloadBytes returns the number of bytes currently used by the heap.
func (l *Leaf) PayloadBytes() int {
	return flex.DataLen - int(l.header.KeyPos)
}

// KeyAt returns the key stored at directory index.
func (l *Leaf) KeyAt(index int) string { return l.data.KeyAt(&l.header, index) }

// ValueAt returns the value stored at directory index.
func (l *Leaf) ValueAt(index int) uintptr { return l.data.ValueAt(&l.header, index) }

// CanFit reports whether key plus a value and a slot descriptor still
// fits in the unused space.
func (l *Leaf) CanFit(key string) bool {
	newEntrySize := len(key) + flex.PtrSize + flex.SlotSize
	return l.UnusedBytes() >= newEntrySize
}

// Sibling returns the next leaf in key order, or nil at the end of the chain.
func (l *Leaf) Sibling() *Leaf {
	return (*Leaf)(l.header.Child)
}

// UpperBound returns the directory index of the first entry whose key
// compares at or above key (Size() if none does) — the position Range
// scans use to find where within a leaf to start.
func (l *Leaf) UpperBound(key string) int { return l.getUpperBound(key) }

func (l *Leaf) getUpperBound(key string) int {
	count := int(l.header.NodeCount)
	hint := flex.Fingerprint(key)
	slotNr := 0

	for i := 0; i < count; i++ {
		s := l.data.SlotAt(i)
		if s.FirstBytes >= hint {
			nodeKey, _ := l.data.GetHeapEntry(&l.header, s)
			if nodeKey >= key {
				return slotNr
			}
		}
		slotNr++
	}

	return slotNr
}

// commonPrefix returns the number of leading bytes a and b have in common.
func commonPrefix(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// getSmallestSeparator returns the shortest prefix of key that still
// discriminates it from lastKey, provided that prefix is shorter than
// currentBest; ok is false when it isn't an improvement.
func getSmallestSeparator(lastKey, key string, currentBest int) (separator string, length int, ok bool) {
	sepLen := commonPrefix(lastKey, key) + 1
	if sepLen >= currentBest {
		return "", 0, false
	}
	// A prefix always compares less than the string it was taken from,
	// and key has at least sepLen bytes: if it didn't, key and lastKey
	// would be equal, which duplicate-key handling already rules out
	// before a split is ever planned.
	return key[:sepLen], sepLen, true
}

// getSplit searches a narrow window around the midpoint of the
// conceptual node_count+1 entries (the committed ones plus the pending
// overflow entry) for the adjacent pair whose shortest discriminating
// prefix is smallest, minimizing the separator propagated upward.
func (l *Leaf) getSplit(overflow flex.Slot, newKey string, newValue uintptr) (int, string) {
	count := int(l.header.NodeCount)
	midpoint := (count + 1) / 2

	lo := midpoint - 1
	if lo < 0 {
		lo = 0
	}
	hi := midpoint + 2
	if hi > count {
		hi = count
	}

	key, _ := l.data.GetOverflowHeapEntry(&l.header, l.data.SlotAt(lo), newKey, newValue)

	i := lo
	splitIndex := 0
	best := noBest
	var separator string
	found := false

	for idx := lo + 1; idx < hi; idx++ {
		nextKey, _ := l.data.GetOverflowHeapEntry(&l.header, l.data.SlotAt(idx), newKey, newValue)
		if sep, length, ok := getSmallestSeparator(key, nextKey, best); ok {
			best = length
			separator = sep
			found = true
			splitIndex = i + 1
		}
		key = nextKey
		i++
	}

	// The window above stops short of the conceptual last entry when
	// midpoint+2 reaches past node_count; run one more comparison
	// against the pending overflow entry to cover it.
	if midpoint+2 > count {
		nextKey, _ := l.data.GetOverflowHeapEntry(&l.header, overflow, newKey, newValue)
		if sep, _, ok := getSmallestSeparator(key, nextKey, best); ok {
			separator = sep
			found = true
			splitIndex = i + 1
		}
	}

	if !found {
		flex.Violatef("leaf split could not find a suitable separator")
	}

	return splitIndex, separator
}

// Insert adds key/value, splitting this leaf if it doesn't fit.
//
// Duplicate policy: if key is already present, Insert returns Inserted
// without touching the stored value. This mirrors the upstream
// implementation's behavior rather than "fixing" it — see the package's
// design notes for why.
//
// On split, this leaf becomes the left half in place: the parent's
// existing pointer to it stays valid, and the returned Split.Sibling is
// the new right half the caller must link in.
func (l *Leaf) Insert(key string, value uintptr) flex.Result {
	if len(key)+flex.PtrSize+flex.SlotSize > flex.DataLen {
		flex.Violatef("key of %d bytes cannot fit on any page (max %d)", len(key), flex.DataLen-flex.PtrSize-flex.SlotSize)
	}

	index := l.getUpperBound(key)

	if index < int(l.header.NodeCount) && l.data.KeyAt(&l.header, index) == key {
		return flex.Result{Outcome: flex.Inserted}
	}

	if l.CanFit(key) {
		node := l.data.AddHeapEntry(&l.header, key, value)
		l.data.InsertStack(&l.header, index, node)
		return flex.Result{Outcome: flex.Inserted}
	}

	overflow := l.data.InsertStackOverflow(&l.header, index, flex.OverflowSlot(flex.Fingerprint(key)))
	splitIndex, separator := l.getSplit(overflow, key, value)
	// Copy the separator out before l's backing array is overwritten below.
	separator = string([]byte(separator))

	nodes := l.data.Nodes(&l.header)
	leftNodes, rightNodes := nodes[:splitIndex], nodes[splitIndex:]

	left := newFromRange(leftNodes, l, nil, key, value)
	right := newFromRange(rightNodes, l, &overflow, key, value)
	right.header.Child = l.header.Child

	*l = *left

	l.header.Child = unsafe.Pointer(right)

	return flex.Result{
		Outcome: flex.Inserted,
		Split: &flex.Split{
			Separator: separator,
			Sibling:   unsafe.Pointer(right),
		},
	}
}

// Get returns the value stored under key, if present.
func (l *Leaf) Get(key string) (uintptr, bool) {
	index := l.getUpperBound(key)
	if index == l.Size() {
		return 0, false
	}

	s := l.data.SlotAt(index)
	entryKey, entryValue := l.data.GetHeapEntry(&l.header, s)
	if entryKey == key {
		return entryValue, true
	}
	return 0, false
}

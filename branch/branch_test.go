package branch

import (
	"fmt"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/flexmod/flextree/flex"
	"github.com/flexmod/flextree/leaf"
)

func newLeafNode() flex.Node {
	return unsafe.Pointer(leaf.New())
}

func TestNewAndChildAt(t *testing.T) {
	left := newLeafNode()
	right := newLeafNode()

	b := New(left, right, "m")

	if b.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", b.Size())
	}
	if got := b.ChildAt(0); got != left {
		t.Fatal("ChildAt(0) does not return left")
	}
	if got := b.ChildAt(1); got != right {
		t.Fatal("ChildAt(1) (tail) does not return right")
	}
	if b.KeyAt(0) != "m" {
		t.Fatalf("KeyAt(0) = %q, want \"m\"", b.KeyAt(0))
	}
}

func TestUpperBoundRouting(t *testing.T) {
	left := newLeafNode()
	right := newLeafNode()
	b := New(left, right, "m")

	if got := b.UpperBound("a"); got != 0 {
		t.Fatalf("UpperBound(a) = %d, want 0", got)
	}
	if got := b.UpperBound("m"); got != 1 {
		t.Fatalf("UpperBound(m) = %d, want 1 (strictly-greater routing sends equal keys right)", got)
	}
	if got := b.UpperBound("z"); got != 1 {
		t.Fatalf("UpperBound(z) = %d, want 1", got)
	}
}

func TestHeightOneInsertAndGet(t *testing.T) {
	leftLeaf := leaf.New()
	rightLeaf := leaf.New()
	leftLeaf.Insert("a", 1)
	rightLeaf.Insert("z", 26)

	b := New(unsafe.Pointer(leftLeaf), unsafe.Pointer(rightLeaf), "m")

	b.Insert("b", 2, 1)
	b.Insert("y", 25, 1)

	if v, ok := b.Get("a", 1); !ok || v != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if v, ok := b.Get("b", 1); !ok || v != 2 {
		t.Fatalf("Get(b) = (%d, %v), want (2, true)", v, ok)
	}
	if v, ok := b.Get("y", 1); !ok || v != 25 {
		t.Fatalf("Get(y) = (%d, %v), want (25, true)", v, ok)
	}
	if v, ok := b.Get("z", 1); !ok || v != 26 {
		t.Fatalf("Get(z) = (%d, %v), want (26, true)", v, ok)
	}
	if _, ok := b.Get("q", 1); ok {
		t.Fatal("Get(q) found a value that was never inserted")
	}
}

func TestBranchSplitOnOverflow(t *testing.T) {
	left := leaf.New()
	right := leaf.New()
	b := New(unsafe.Pointer(left), unsafe.Pointer(right), "m")

	var overflowKey string
	count := 0
	for {
		key := fmt.Sprintf("%08d", rand.Uint64())
		if key == "m" {
			continue
		}
		if !b.CanFit(key) {
			overflowKey = key
			break
		}
		b.insertAt(b.UpperBound(key), key, newLeafNode())
		count++
	}

	sizeBefore := b.Size()

	res := b.insertAt(b.UpperBound(overflowKey), overflowKey, newLeafNode())
	if res.Split == nil {
		t.Fatal("branch did not split on overflow insert")
	}

	// b is now the right half and Sibling the left half; the median of
	// the sizeBefore+1 logical entries moves up as the separator, so the
	// two halves together hold sizeBefore separators.
	leftHalf := (*Branch)(res.Split.Sibling)
	if got, want := leftHalf.Size()+b.Size(), sizeBefore; got != want {
		t.Fatalf("separator count after split = %d, want %d", got, want)
	}

	prev := b.KeyAt(0)
	for i := 1; i < b.Size(); i++ {
		key := b.KeyAt(i)
		if !(prev < key) {
			t.Fatalf("right half keys out of order at %d: %q >= %q", i, prev, key)
		}
		prev = key
	}
}

func TestInsertLeafAtReplacesInPlaceHalfCorrectly(t *testing.T) {
	left := leaf.New()
	right := leaf.New()
	left.Insert("a", 1)
	right.Insert("z", 26)

	b := New(unsafe.Pointer(left), unsafe.Pointer(right), "m")

	newRight := newLeafNode()
	res := b.InsertLeafAt(0, "g", newRight)
	if res.Outcome != flex.Inserted || res.Split != nil {
		t.Fatalf("InsertLeafAt = %+v, want plain Inserted (branch had room)", res)
	}

	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 after absorbing a leaf split", b.Size())
	}
	if got := b.ChildAt(0); got != unsafe.Pointer(left) {
		t.Fatal("ChildAt(0) should still be the original (now left-half) leaf")
	}
	if got := b.ChildAt(1); got != newRight {
		t.Fatal("ChildAt(1) should be the newly inserted right half")
	}
	if got := b.ChildAt(2); got != unsafe.Pointer(right) {
		t.Fatal("tail child should be unchanged")
	}
	if b.KeyAt(0) != "g" || b.KeyAt(1) != "m" {
		t.Fatalf("keys = [%q, %q], want [\"g\", \"m\"]", b.KeyAt(0), b.KeyAt(1))
	}
}

func TestInsertBranchAtDoesNotSwap(t *testing.T) {
	left := newLeafNode()
	right := newLeafNode()
	b := New(left, right, "m")

	newChild := unsafe.Pointer(newBranch(nil))
	res := b.InsertBranchAt(0, "c", newChild)
	if res.Outcome != flex.Inserted || res.Split != nil {
		t.Fatalf("InsertBranchAt = %+v, want plain Inserted", res)
	}

	if b.ChildAt(0) != newChild {
		t.Fatal("ChildAt(0) should be the newly inserted branch child")
	}
	if b.ChildAt(1) != left {
		t.Fatal("ChildAt(1) should be the original left child, shifted right")
	}
	if b.ChildAt(2) != right {
		t.Fatal("tail child should be unchanged for a branch absorption")
	}
}

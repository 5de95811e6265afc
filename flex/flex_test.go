package flex

import "testing"

func TestPageSizeAccounting(t *testing.T) {
	if HeaderSize+DataLen != PageSize {
		t.Fatalf("HeaderSize(%d) + DataLen(%d) != PageSize(%d)", HeaderSize, DataLen, PageSize)
	}
}

func TestFingerprint(t *testing.T) {
	cases := []struct {
		key  string
		want uint32
	}{
		{"", 0},
		{"a", 0x61000000},
		{"ab", 0x61620000},
		{"abcd", 0x61626364},
		{"abcdef", 0x61626364},
	}

	for _, c := range cases {
		if got := Fingerprint(c.key); got != c.want {
			t.Errorf("Fingerprint(%q) = %#x, want %#x", c.key, got, c.want)
		}
	}
}

func TestAddAndInsertStack(t *testing.T) {
	f := &Flex{}
	h := NewHeader(nil)

	a := f.AddHeapEntry(&h, "banana", 1)
	f.InsertStack(&h, 0, a)

	b := f.AddHeapEntry(&h, "apple", 2)
	f.InsertStack(&h, 0, b)

	if h.NodeCount != 2 {
		t.Fatalf("NodeCount = %d, want 2", h.NodeCount)
	}

	if key := f.KeyAt(&h, 0); key != "apple" {
		t.Errorf("slot 0 key = %q, want apple", key)
	}
	if key := f.KeyAt(&h, 1); key != "banana" {
		t.Errorf("slot 1 key = %q, want banana", key)
	}
	if v := f.ValueAt(&h, 0); v != 2 {
		t.Errorf("slot 0 value = %d, want 2", v)
	}
}

func TestSwapPtrAt(t *testing.T) {
	f := &Flex{}
	h := NewHeader(nil)

	s := f.AddHeapEntry(&h, "k", 10)
	f.InsertStack(&h, 0, s)

	old := f.SwapPtrAt(&h, 0, 20)
	if old != 10 {
		t.Fatalf("SwapPtrAt returned %d, want 10", old)
	}
	if v := f.ValueAt(&h, 0); v != 20 {
		t.Fatalf("value after swap = %d, want 20", v)
	}
	if key := f.KeyAt(&h, 0); key != "k" {
		t.Fatalf("key after swap = %q, want k", key)
	}
}

func TestOverflowSlotAndGetOverflowHeapEntry(t *testing.T) {
	f := &Flex{}
	h := NewHeader(nil)

	real := f.AddHeapEntry(&h, "x", 1)
	f.InsertStack(&h, 0, real)

	overflow := OverflowSlot(Fingerprint("zzz"))
	if !overflow.Overflow() {
		t.Fatal("OverflowSlot did not report Overflow() == true")
	}

	key, val := f.GetOverflowHeapEntry(&h, overflow, "zzz", 99)
	if key != "zzz" || val != 99 {
		t.Fatalf("GetOverflowHeapEntry = (%q, %d), want (zzz, 99)", key, val)
	}

	realSlot := f.SlotAt(0)
	key, val = f.GetOverflowHeapEntry(&h, realSlot, "zzz", 99)
	if key != "x" || val != 1 {
		t.Fatalf("GetOverflowHeapEntry on real slot = (%q, %d), want (x, 1)", key, val)
	}
}

func TestInsertStackOverflowDoesNotGrowDirectory(t *testing.T) {
	f := &Flex{}
	h := NewHeader(nil)

	for _, key := range []string{"a", "b", "c"} {
		s := f.AddHeapEntry(&h, key, 0)
		f.InsertStack(&h, int(h.NodeCount), s)
	}

	before := h.NodeCount
	dropped := f.InsertStackOverflow(&h, 1, OverflowSlot(Fingerprint("bb")))
	if h.NodeCount != before {
		t.Fatalf("InsertStackOverflow changed NodeCount from %d to %d", before, h.NodeCount)
	}

	// The slot that fell off the end should be the original last entry, "c".
	key, _ := f.GetHeapEntry(&h, dropped)
	if key != "c" {
		t.Fatalf("dropped slot key = %q, want c", key)
	}

	// Slot 1 now holds the sentinel we pushed in.
	if !f.SlotAt(1).Overflow() {
		t.Fatalf("slot 1 is not the overflow sentinel after InsertStackOverflow")
	}
}

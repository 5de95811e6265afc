// Package flex implements the slotted-page primitive shared by leaf and
// branch pages: a fixed-size byte buffer holding a slot directory that
// grows from the front and a heap of (pointer, key) entries that grows
// down from the back, with free space in between.
package flex

import (
	"encoding/binary"
	"unsafe"
)

const (
	// PageSize is the fixed size of every page in the tree.
	PageSize = 4096

	// PtrSize is the width reserved for the opaque pointer word stored
	// alongside every key in the heap.
	PtrSize = 8

	// SlotSize is the width of one directory entry: start, end (2 bytes
	// each) plus a 4-byte big-endian key-prefix fingerprint.
	SlotSize = 8

	// HeaderSize is the size of the out-of-band Header kept alongside
	// (not inside) every page's byte payload.
	HeaderSize = 16

	// DataLen is the number of bytes available to the directory and
	// heap combined.
	DataLen = PageSize - HeaderSize
)

const overflowMark uint16 = 0xFFFF

// Slot is the 8-byte directory descriptor: an absolute [start, end) byte
// range into the page payload plus the big-endian prefix of the key used
// to skip most string comparisons during lookup.
type Slot struct {
	Start      uint16
	End        uint16
	FirstBytes uint32
}

// Overflow reports whether s is the sentinel slot used to evaluate a
// pending, not-yet-committed entry during split planning.
func (s Slot) Overflow() bool {
	return s.Start == overflowMark && s.End == overflowMark
}

// OverflowSlot builds the sentinel slot carrying only a fingerprint, used
// to reserve a directory position for an entry that lives nowhere in the
// heap yet.
func OverflowSlot(firstBytes uint32) Slot {
	return Slot{Start: overflowMark, End: overflowMark, FirstBytes: firstBytes}
}

// Fingerprint packs up to the first 4 bytes of key, big-endian, zero
// padded, for use as a Slot's FirstBytes prefilter.
func Fingerprint(key string) uint32 {
	var b [4]byte
	n := len(key)
	if n > 4 {
		n = 4
	}
	copy(b[:n], key[:n])
	return binary.BigEndian.Uint32(b[:])
}

// Header is kept outside the page payload, unlike the rest of the
// slotted layout. Child is a live Go pointer to this page's tail child
// (branches) or forward sibling (leaves); embedding it inside the raw
// byte buffer below would hide it from the garbage collector, since Go
// does not scan plain byte slices for pointers.
type Header struct {
	NodeCount uint16
	KeyPos    uint16
	Child     unsafe.Pointer
}

// NewHeader returns a Header for an empty page with the given tail
// child/sibling pointer (nil if none).
func NewHeader(child unsafe.Pointer) Header {
	return Header{NodeCount: 0, KeyPos: DataLen, Child: child}
}

// Flex is the slotted-page payload itself.
type Flex struct {
	raw [DataLen]byte
}

func decodeSlot(b []byte) Slot {
	return Slot{
		Start:      binary.LittleEndian.Uint16(b[0:2]),
		End:        binary.LittleEndian.Uint16(b[2:4]),
		FirstBytes: binary.LittleEndian.Uint32(b[4:8]),
	}
}

func encodeSlot(b []byte, s Slot) {
	binary.LittleEndian.PutUint16(b[0:2], s.Start)
	binary.LittleEndian.PutUint16(b[2:4], s.End)
	binary.LittleEndian.PutUint32(b[4:8], s.FirstBytes)
}

func (f *Flex) slotAt(i int) Slot {
	off := i * SlotSize
	return decodeSlot(f.raw[off : off+SlotSize])
}

func (f *Flex) setSlotAt(i int, s Slot) {
	off := i * SlotSize
	encodeSlot(f.raw[off:off+SlotSize], s)
}

// Nodes returns a copy of the current slot directory. Read-only callers
// (upper-bound search, printing) use this; mutation goes through the
// indexed helpers below, which operate on the raw buffer directly.
func (f *Flex) Nodes(h *Header) []Slot {
	n := int(h.NodeCount)
	nodes := make([]Slot, n)
	for i := 0; i < n; i++ {
		nodes[i] = f.slotAt(i)
	}
	return nodes
}

// SlotAt returns the directory entry at index.
func (f *Flex) SlotAt(index int) Slot {
	return f.slotAt(index)
}

func (f *Flex) entryBytes(s Slot) []byte {
	return f.raw[s.Start:s.End]
}

// GetHeapEntry reads the (key, pointer) pair a committed slot refers to.
// The header parameter only exists so that callers have a uniform
// signature across the directory/heap-aware helpers in this file; the
// slot's Start/End are absolute offsets into the page payload, so no
// directory-size adjustment is needed to resolve them.
func (f *Flex) GetHeapEntry(h *Header, s Slot) (string, uintptr) {
	b := f.entryBytes(s)
	ptr := uintptr(binary.LittleEndian.Uint64(b[:PtrSize]))
	key := string(b[PtrSize:])
	return key, ptr
}

// GetOverflowHeapEntry resolves s, substituting (extraKey, extraValue)
// when s is the sentinel overflow slot rather than dereferencing it.
func (f *Flex) GetOverflowHeapEntry(h *Header, s Slot, extraKey string, extraValue uintptr) (string, uintptr) {
	if s.Overflow() {
		return extraKey, extraValue
	}
	return f.GetHeapEntry(h, s)
}

// KeyAt returns the key stored at directory index.
func (f *Flex) KeyAt(h *Header, index int) string {
	key, _ := f.GetHeapEntry(h, f.slotAt(index))
	return key
}

// KeyAtOverflow is KeyAt, but resolves against the pending overflow
// entry when index lands on the not-yet-committed directory position.
func (f *Flex) KeyAtOverflow(h *Header, index int, extraKey string, extraValue uintptr, overflow Slot) string {
	if index == int(h.NodeCount) {
		key, _ := f.GetOverflowHeapEntry(h, overflow, extraKey, extraValue)
		return key
	}
	key, _ := f.GetOverflowHeapEntry(h, f.slotAt(index), extraKey, extraValue)
	return key
}

// ValueAt returns the pointer word stored at directory index.
func (f *Flex) ValueAt(h *Header, index int) uintptr {
	_, ptr := f.GetHeapEntry(h, f.slotAt(index))
	return ptr
}

// EntryAt returns the (key, pointer) pair stored at directory index.
func (f *Flex) EntryAt(h *Header, index int) (string, uintptr) {
	return f.GetHeapEntry(h, f.slotAt(index))
}

// SwapPtrAt overwrites the pointer word of the entry at index in place,
// returning the previous value. The key is untouched.
func (f *Flex) SwapPtrAt(h *Header, index int, ptr uintptr) uintptr {
	s := f.slotAt(index)
	b := f.entryBytes(s)
	old := uintptr(binary.LittleEndian.Uint64(b[:PtrSize]))
	binary.LittleEndian.PutUint64(b[:PtrSize], uint64(ptr))
	return old
}

// SwapPtrAtOverflow is SwapPtrAt, but resolves against the pending
// overflow entry when index lands on the not-yet-committed position;
// since the overflow entry isn't backed by real storage yet, the new
// pointer is returned in extraValue's place via the second return value.
func (f *Flex) SwapPtrAtOverflow(h *Header, index int, extraValue uintptr, ptr uintptr) (old uintptr, newExtraValue uintptr) {
	if index == int(h.NodeCount) {
		return extraValue, ptr
	}
	return f.SwapPtrAt(h, index, ptr), extraValue
}

// AddHeapEntry allocates len(key)+PtrSize bytes at the top of the heap,
// writes the pointer word then the key bytes, and returns a Slot
// describing the new entry. It does not add the slot to the directory —
// the caller decides where with InsertStack.
func (f *Flex) AddHeapEntry(h *Header, key string, value uintptr) Slot {
	slotLen := len(key) + PtrSize
	end := int(h.KeyPos)
	start := end - slotLen

	b := f.raw[start:end]
	binary.LittleEndian.PutUint64(b[:PtrSize], uint64(value))
	copy(b[PtrSize:], key)

	h.KeyPos = uint16(start)

	return Slot{Start: uint16(start), End: uint16(end), FirstBytes: Fingerprint(key)}
}

// InsertStack grows the directory by one slot and shifts entry into
// position index, bubbling every slot from index onward one position to
// the right.
func (f *Flex) InsertStack(h *Header, index int, entry Slot) {
	h.NodeCount++
	n := int(h.NodeCount)
	cur := entry
	for i := index; i < n; i++ {
		existing := f.slotAt(i)
		f.setSlotAt(i, cur)
		cur = existing
	}
}

// InsertStackOverflow simulates InsertStack without growing the
// directory: it shifts slots [index, NodeCount) one position to the
// right in place and returns the slot that fell off the end, leaving
// the directory in a state only valid for split planning against a
// self that is about to be rebuilt and discarded.
func (f *Flex) InsertStackOverflow(h *Header, index int, entry Slot) Slot {
	n := int(h.NodeCount)
	cur := entry
	for i := index; i < n; i++ {
		existing := f.slotAt(i)
		f.setSlotAt(i, cur)
		cur = existing
	}
	return cur
}

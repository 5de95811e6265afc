package main

import (
	"unsafe"

	"github.com/flexmod/flextree/tree"
)

// flexIndex adapts *tree.Tree to the Index interface this suite drives.
// flextree only ever stores a caller-owned uintptr, never the bytes
// themselves, so flexIndex keeps the owning byte slices alive in values,
// keyed by the same address handed to the tree — exactly the ownership
// split spec.md describes for Value.
type flexIndex struct {
	tr     *tree.Tree
	values map[uintptr][]byte
}

func newFlexIndex() *flexIndex {
	return &flexIndex{tr: tree.New(), values: make(map[uintptr][]byte)}
}

func (f *flexIndex) Insert(key, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	var addr uintptr
	if len(buf) > 0 {
		addr = uintptr(unsafe.Pointer(&buf[0]))
	}

	f.tr.Insert(key, tree.Value(addr))
	f.values[addr] = buf
	return nil
}

func (f *flexIndex) Get(key []byte) ([]byte, error) {
	v, ok := f.tr.Get(key)
	if !ok {
		return nil, nil
	}
	return f.values[uintptr(v)], nil
}

func (f *flexIndex) Range(start, end []byte) (Iterator, error) {
	return &flexRangeIterator{it: f.tr.Range(start, end), values: f.values}, nil
}

func (f *flexIndex) Close() error {
	f.tr.Drop()
	f.values = nil
	return nil
}

type flexRangeIterator struct {
	it     *tree.RangeIterator
	values map[uintptr][]byte
	key    []byte
	value  []byte
}

func (it *flexRangeIterator) Next() bool {
	if !it.it.Next() {
		return false
	}
	it.key = it.it.Key()
	it.value = it.values[uintptr(it.it.Value())]
	return true
}

func (it *flexRangeIterator) Key() []byte   { return it.key }
func (it *flexRangeIterator) Value() []byte { return it.value }
func (it *flexRangeIterator) Error() error  { return nil }
func (it *flexRangeIterator) Close() error  { return nil }

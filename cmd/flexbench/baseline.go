package main

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// pebbleIndex wraps Pebble (CockroachDB's LSM storage engine) behind the
// Index interface so it can be benchmarked alongside flextree. Unlike
// the teacher's int64-keyed LSM wrapper, string keys already sort
// correctly as raw bytes, so no key encoding step is needed.
type pebbleIndex struct {
	db *pebble.DB
}

// openPebble opens (or creates) a Pebble database at dir.
func openPebble(dir string) (*pebbleIndex, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("baseline: open: %w", err)
	}
	return &pebbleIndex{db: db}, nil
}

func (p *pebbleIndex) Insert(key, value []byte) error {
	return p.db.Set(key, value, pebble.NoSync)
}

func (p *pebbleIndex) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("baseline: get: %w", err)
	}
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, nil
}

func (p *pebbleIndex) Range(start, end []byte) (Iterator, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return nil, fmt.Errorf("baseline: range: %w", err)
	}
	iter.First()
	return &pebbleRangeIterator{iter: iter, first: true}, nil
}

func (p *pebbleIndex) Close() error {
	return p.db.Close()
}

type pebbleRangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   []byte
	value []byte
	err   error
}

func (it *pebbleRangeIterator) Next() bool {
	var valid bool
	if it.first {
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}

	k := it.iter.Key()
	it.key = make([]byte, len(k))
	copy(it.key, k)

	v := it.iter.Value()
	it.value = make([]byte, len(v))
	copy(it.value, v)
	return true
}

func (it *pebbleRangeIterator) Key() []byte   { return it.key }
func (it *pebbleRangeIterator) Value() []byte { return it.value }
func (it *pebbleRangeIterator) Error() error  { return it.err }
func (it *pebbleRangeIterator) Close() error  { return it.iter.Close() }

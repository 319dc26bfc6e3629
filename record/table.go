// Package record implements interning of fixed-arity domain tuples to
// reference ids and back (spec.md §3 "Record table").
package record

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Pudrick/Souffle-mod/domain"
)

type entry struct {
	id    domain.Word
	tuple domain.Tuple
}

// Table interns arity-tagged tuples to reference ids. Id 0 is reserved
// for the nil record reference; Pack never returns it.
type Table struct {
	mu      sync.RWMutex
	buckets map[uint64][]entry
	byID    []domain.Tuple // index 0 unused (nil)
}

// New returns an empty record table.
func New() *Table {
	return &Table{
		buckets: make(map[uint64][]entry),
		byID:    []domain.Tuple{nil},
	}
}

func hashTuple(t domain.Tuple) uint64 {
	buf := make([]byte, 8*len(t))
	for i, w := range t {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(w))
	}
	return xxhash.Sum64(buf)
}

// Pack interns tuple (of the given arity) and returns its reference id.
// Interning is idempotent: packing an equal tuple twice returns the same
// id. arity must equal len(tuple); it is accepted explicitly to match
// spec.md's signature and to let callers assert it defensively.
func (t *Table) Pack(tuple domain.Tuple, arity int) domain.Word {
	if len(tuple) != arity {
		panic("record: tuple arity mismatch")
	}
	h := hashTuple(tuple)

	t.mu.RLock()
	for _, e := range t.buckets[h] {
		if e.tuple.Equal(tuple) {
			t.mu.RUnlock()
			return e.id
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.buckets[h] {
		if e.tuple.Equal(tuple) {
			return e.id
		}
	}
	stored := tuple.Clone()
	id := domain.FromUnsigned(uint64(len(t.byID)))
	t.byID = append(t.byID, stored)
	t.buckets[h] = append(t.buckets[h], entry{id: id, tuple: stored})
	return id
}

// Unpack returns the tuple interned under id, borrowed for the lifetime
// of the table (spec.md §3 "returns a borrowed view valid for the
// lifetime of the table"). Callers that need to mutate it must Clone.
func (t *Table) Unpack(id domain.Word, arity int) domain.Tuple {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := id.Unsigned()
	if idx == 0 {
		panic("record: unpack of nil reference")
	}
	if idx >= uint64(len(t.byID)) {
		panic("record: unpack of unknown id")
	}
	tup := t.byID[idx]
	if len(tup) != arity {
		panic("record: arity mismatch on unpack")
	}
	return tup
}

// Len returns the number of distinct interned tuples.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID) - 1
}

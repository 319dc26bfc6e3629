// Package index implements the ordered container over tuples that a
// Relation's Index is built from (spec.md §3, §4.1). Ordering, range
// queries and partitioned scans are all defined relative to a column
// order: a permutation of the tuple's columns that determines the sort
// key.
package index

import (
	"github.com/google/btree"

	"github.com/Pudrick/Souffle-mod/domain"
)

const btreeDegree = 32

// Order is a permutation of column positions; Order[i] is the i-th
// column compared, most-significant first.
type Order []int

// Index is an ordered container over domain.Tuple under a fixed Order.
// It is safe for concurrent readers; writes (Insert/Erase) must not race
// with each other on the same Index, but may race with readers holding a
// View (the caller serializes writes through Relation, see relation.go).
type Index struct {
	order  Order
	types  []domain.Type // per-tuple-column type, len == full tuple arity
	bt     *btree.BTree
}

// item is the btree.Item wrapping one tuple; comparison walks the
// Index's column Order.
type item struct {
	tuple domain.Tuple
	idx   *Index
}

func (a item) Less(than btree.Item) bool {
	b := than.(item)
	for _, col := range a.idx.order {
		c := domain.Compare(a.tuple[col], b.tuple[col], a.idx.types[col])
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// New returns an empty Index ordered by order, where types[i] is the
// domain type of the tuple's i-th column (used for correctly-typed
// comparisons, since a Word's bits alone do not carry its type).
func New(order Order, types []domain.Type) *Index {
	return &Index{order: order, types: types, bt: btree.New(btreeDegree)}
}

// Order returns the column permutation this index is sorted by.
func (ix *Index) Order() Order { return ix.order }

// Len returns the number of tuples in the index.
func (ix *Index) Len() int { return ix.bt.Len() }

// Insert adds tuple to the index. It is a no-op if an equal tuple (under
// full-column comparison) is already present, matching the surrounding
// Relation's set semantics.
func (ix *Index) Insert(tuple domain.Tuple) {
	ix.bt.ReplaceOrInsert(item{tuple: tuple, idx: ix})
}

// Erase removes tuple from the index if present, and reports whether it
// was found.
func (ix *Index) Erase(tuple domain.Tuple) bool {
	removed := ix.bt.Delete(item{tuple: tuple, idx: ix})
	return removed != nil
}

// Contains reports whether tuple is present.
func (ix *Index) Contains(tuple domain.Tuple) bool {
	return ix.bt.Has(item{tuple: tuple, idx: ix})
}

// ContainsRange reports whether any tuple falls within [low, high]
// (inclusive both ends) under this index's column order.
func (ix *Index) ContainsRange(low, high domain.Tuple) bool {
	found := false
	ix.rangeAscend(low, high, func(domain.Tuple) bool {
		found = true
		return false
	})
	return found
}

// Scan calls fn for every tuple in ascending order. Iteration stops
// early if fn returns false.
func (ix *Index) Scan(fn func(domain.Tuple) bool) {
	ix.bt.Ascend(func(it btree.Item) bool {
		return fn(it.(item).tuple)
	})
}

// RangeScan calls fn for every tuple within [low, high] (inclusive) in
// ascending order under this index's column order. low/high need only
// have values set for the columns that matter; unbounded columns should
// carry the type's min/max sentinel (spec.md §3).
func (ix *Index) RangeScan(low, high domain.Tuple, fn func(domain.Tuple) bool) {
	ix.rangeAscend(low, high, fn)
}

func (ix *Index) rangeAscend(low, high domain.Tuple, fn func(domain.Tuple) bool) {
	lo := item{tuple: low, idx: ix}
	// btree.AscendRange is [greaterOrEqual, lessThan): to get an
	// inclusive upper bound we advance past any tuple equal to high by
	// asking for everything not greater than high, checked in the
	// callback since btree has no native closed-range primitive.
	ix.bt.AscendGreaterOrEqual(lo, func(it btree.Item) bool {
		t := it.(item).tuple
		if ix.compareToBound(t, high) > 0 {
			return false
		}
		return fn(t)
	})
}

func (ix *Index) compareToBound(t, bound domain.Tuple) int {
	for _, col := range ix.order {
		c := domain.Compare(t[col], bound[col], ix.types[col])
		if c != 0 {
			return c
		}
	}
	return 0
}

// Partition splits the full scan into at most n roughly equal-sized
// ranges of tuples, returned as functions that each perform one
// partition's scan when called with a callback (spec.md §3 "partitioned
// scan ... produce ≈ N partitions for a requested N").
func (ix *Index) Partition(n int) []func(fn func(domain.Tuple) bool) {
	return ix.partitionRange(nil, nil, n)
}

// PartitionRange splits the range [low, high] into at most n roughly
// equal-sized chunks.
func (ix *Index) PartitionRange(low, high domain.Tuple, n int) []func(fn func(domain.Tuple) bool) {
	return ix.partitionRange(low, high, n)
}

func (ix *Index) partitionRange(low, high domain.Tuple, n int) []func(fn func(domain.Tuple) bool) {
	if n < 1 {
		n = 1
	}
	var all []domain.Tuple
	collect := func(t domain.Tuple) bool {
		all = append(all, t)
		return true
	}
	if low == nil && high == nil {
		ix.Scan(collect)
	} else {
		ix.rangeAscend(low, high, collect)
	}
	if len(all) == 0 {
		return nil
	}
	if n > len(all) {
		n = len(all)
	}
	chunk := (len(all) + n - 1) / n
	var parts []func(fn func(domain.Tuple) bool)
	for start := 0; start < len(all); start += chunk {
		end := start + chunk
		if end > len(all) {
			end = len(all)
		}
		slice := all[start:end]
		parts = append(parts, func(fn func(domain.Tuple) bool) {
			for _, t := range slice {
				if !fn(t) {
					return
				}
			}
		})
	}
	return parts
}

// Package view implements the scoped read handle spec.md §3 describes:
// a View binds to (relation, index order, pattern length) and is the
// only interface a nested operation may use for existence checks and
// range scans.
package view

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/index"
	"github.com/Pudrick/Souffle-mod/relation"
)

// View is a handle to one specific index of one relation, scoped to the
// lifetime of the nested operation that created it.
type View struct {
	rel       relation.Relation
	idx       *index.Index
	order     index.Order
	arity     int // pattern length this view was created for
	discarded bool
}

// New creates a view over rel's index materialized for order. It panics
// if the relation did not materialize that order — that is a structural
// error in NodeGenerator's view-allocation pass, not a runtime
// condition callers should recover from.
func New(rel relation.Relation, order index.Order, patternArity int) *View {
	ix, ok := rel.Index(order)
	if !ok {
		panic("view: relation has no index for the requested order")
	}
	return &View{rel: rel, idx: ix, order: order, arity: patternArity}
}

// Discard releases the view's hold on the underlying index. After
// Discard, the view must not be used again.
func (v *View) Discard() { v.discarded = true }

func (v *View) checkLive() {
	if v.discarded {
		panic("view: use after discard")
	}
}

// Relation returns the relation this view is bound to.
func (v *View) Relation() relation.Relation { return v.rel }

// Order returns the column order this view scans/ranges under.
func (v *View) Order() index.Order { return v.order }

// Contains performs a total existence check for tuple.
func (v *View) Contains(tuple domain.Tuple) bool {
	v.checkLive()
	return v.idx.Contains(tuple)
}

// ContainsRange performs a range existence check over [low, high].
func (v *View) ContainsRange(low, high domain.Tuple) bool {
	v.checkLive()
	return v.idx.ContainsRange(low, high)
}

// Scan iterates every tuple visible through this view's index.
func (v *View) Scan(fn func(domain.Tuple) bool) {
	v.checkLive()
	v.idx.Scan(fn)
}

// RangeScan iterates every tuple within [low, high] under this view's
// index.
func (v *View) RangeScan(low, high domain.Tuple, fn func(domain.Tuple) bool) {
	v.checkLive()
	v.idx.RangeScan(low, high, fn)
}

// Partition splits a full scan of this view's index into n chunks.
func (v *View) Partition(n int) []func(fn func(domain.Tuple) bool) {
	v.checkLive()
	return v.idx.Partition(n)
}

// PartitionRange splits a range scan of this view's index into n
// chunks.
func (v *View) PartitionRange(low, high domain.Tuple, n int) []func(fn func(domain.Tuple) bool) {
	v.checkLive()
	return v.idx.PartitionRange(low, high, n)
}

// Set is an indexed collection of live views belonging to one Context
// (spec.md §3 "An indexed collection of live views"), keyed by the
// global view id node.Generator assigned the owning operation — the
// same id a query's views-for-filter/views-for-nested lists carry.
type Set struct {
	byID  map[int]*View
	order []int // creation order, for reverse-order Discard
}

// Bind registers v under id, replacing whatever was previously bound
// there. id is the global view id assigned once by node.Generator.
func (s *Set) Bind(id int, v *View) {
	if s.byID == nil {
		s.byID = make(map[int]*View)
	}
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = v
}

// Get returns the view bound to id, or false if none is live.
func (s *Set) Get(id int) (*View, bool) {
	v, ok := s.byID[id]
	return v, ok
}

// DiscardAll releases every view in the set, in reverse-creation order
// (mirrors nested acquire/release scoping), and empties the set.
func (s *Set) DiscardAll() {
	for i := len(s.order) - 1; i >= 0; i-- {
		if v, ok := s.byID[s.order[i]]; ok {
			v.Discard()
		}
	}
	s.byID = nil
	s.order = nil
}

// Len reports how many views are currently registered.
func (s *Set) Len() int { return len(s.order) }

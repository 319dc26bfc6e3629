// Package relation implements the four tuple-set representations RAM
// relations may take (spec.md §3): btree, btree-with-delete, equivalence
// and provenance. Every representation owns a named set of indices
// chosen by an IndexCluster advisor and keeps them mutually consistent:
// a tuple inserted is visible through every owned index before Insert
// returns.
package relation

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/index"
)

// Kind selects a relation's representation.
type Kind int

const (
	BTree Kind = iota
	BTreeDelete
	Equivalence
	Provenance
)

func (k Kind) String() string {
	switch k {
	case BTree:
		return "btree"
	case BTreeDelete:
		return "btree-with-delete"
	case Equivalence:
		return "equivalence"
	case Provenance:
		return "provenance"
	default:
		return "unknown"
	}
}

// IndexCluster advises which index column-orders a relation should
// materialize. It is consumed as an external analysis result (spec.md
// §1 "Index selection analysis ... consumed as a per-relation
// IndexCluster"), never computed by this package.
type IndexCluster struct {
	// Orders lists the column orders to materialize. The first order is
	// the relation's default/master index. If empty, New falls back to
	// the identity order.
	Orders []index.Order
}

func (c IndexCluster) orDefault(arity int) IndexCluster {
	if len(c.Orders) > 0 {
		return c
	}
	identity := make(index.Order, arity)
	for i := range identity {
		identity[i] = i
	}
	return IndexCluster{Orders: []index.Order{identity}}
}

// Relation is a tuple set backed by one or more Index instances, all of
// which agree on the live tuple set at all times (spec.md §3, §8
// invariant: "For any two columnar orders present, the relation's live
// tuple set is identical").
type Relation interface {
	Name() string
	Arity() int
	// AuxArity is the number of trailing columns reserved for
	// representation-specific bookkeeping (2 for provenance, 0
	// otherwise).
	AuxArity() int
	Kind() Kind
	Types() []domain.Type

	// Insert adds tuple, returning true if it was not already present.
	// It is visible through every owned index before returning.
	Insert(tuple domain.Tuple) bool
	Contains(tuple domain.Tuple) bool
	Purge()
	Size() int
	Scan(fn func(domain.Tuple) bool)

	// Index returns the owned index materializing order, or false if no
	// such index was materialized by the IndexCluster.
	Index(order index.Order) (*index.Index, bool)
	Indices() []*index.Index
}

// Eraser is implemented by btree-with-delete relations.
type Eraser interface {
	Erase(tuple domain.Tuple) bool
}

// Extender is implemented by equivalence relations, supporting merge of
// another equivalence relation's classes (spec.md §3, §4.11
// MergeExtend).
type Extender interface {
	ExtendAndInsert(target Relation) bool
}

// Provider is the pluggable seam resolving spec.md §9's Open Question:
// rather than special-casing a relation name in relation construction,
// an Engine may install a Provider that gets first refusal on every
// relation the RAM program declares.
type Provider interface {
	// CreateRelation returns a custom Relation for name, or (nil,
	// false) to fall through to the default representation switch.
	CreateRelation(name string, types []domain.Type, kind Kind, cluster IndexCluster) (Relation, bool)
}

// Slot is the indirection Swap operates on (spec.md §4.11): "Swap
// exchanges two relation handles in place — existing pointers held by
// the node tree remain valid because the handle slot, not the relation
// object, is swapped." Every node.Node that references a relation holds
// a *Slot, never a Relation directly.
type Slot struct {
	Rel Relation
}

// NewSlot wraps rel in a Slot.
func NewSlot(rel Relation) *Slot { return &Slot{Rel: rel} }

// Swap exchanges the relations held by a and b in place.
func Swap(a, b *Slot) {
	a.Rel, b.Rel = b.Rel, a.Rel
}

// New constructs a Relation of the given representation. provider, if
// non-nil, is tried first.
func New(provider Provider, name string, types []domain.Type, kind Kind, cluster IndexCluster) Relation {
	if provider != nil {
		if r, ok := provider.CreateRelation(name, types, kind, cluster); ok {
			return r
		}
	}
	switch kind {
	case Equivalence:
		return newEquivalence(name, types)
	case Provenance:
		return newBTreeBase(name, types, Provenance, 2, cluster, false)
	case BTreeDelete:
		return newBTreeBase(name, types, BTreeDelete, 0, cluster, true)
	default:
		return newBTreeBase(name, types, BTree, 0, cluster, false)
	}
}

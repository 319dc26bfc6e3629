package relation

import (
	"sync"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/index"
)

// btreeRelation backs both the btree and btree-with-delete
// representations (spec.md §3), and doubles as the underlying storage
// for provenance (AuxArity 2, no delete support). Every owned index is
// updated under the same mutex so that no reader ever observes the
// indices disagreeing (spec.md §8 invariant).
type btreeRelation struct {
	mu        sync.RWMutex
	name      string
	types     []domain.Type
	kind      Kind
	auxArity  int
	master    *index.Index
	indices   []*index.Index
	byOrder   map[string]*index.Index
	deletable bool
	size      int
}

func orderKey(o index.Order) string {
	b := make([]byte, 0, len(o))
	for _, c := range o {
		b = append(b, byte(c))
	}
	return string(b)
}

func newBTreeBase(name string, types []domain.Type, kind Kind, auxArity int, cluster IndexCluster, deletable bool) *btreeRelation {
	cluster = cluster.orDefault(len(types))
	r := &btreeRelation{
		name:      name,
		types:     types,
		kind:      kind,
		auxArity:  auxArity,
		byOrder:   make(map[string]*index.Index),
		deletable: deletable,
	}
	for i, order := range cluster.Orders {
		ix := index.New(order, types)
		r.indices = append(r.indices, ix)
		r.byOrder[orderKey(order)] = ix
		if i == 0 {
			r.master = ix
		}
	}
	return r
}

func (r *btreeRelation) Name() string          { return r.name }
func (r *btreeRelation) Arity() int            { return len(r.types) }
func (r *btreeRelation) AuxArity() int         { return r.auxArity }
func (r *btreeRelation) Kind() Kind            { return r.kind }
func (r *btreeRelation) Types() []domain.Type  { return r.types }
func (r *btreeRelation) Indices() []*index.Index { return r.indices }

func (r *btreeRelation) Index(order index.Order) (*index.Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.byOrder[orderKey(order)]
	return ix, ok
}

func (r *btreeRelation) Insert(tuple domain.Tuple) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master.Contains(tuple) {
		return false
	}
	for _, ix := range r.indices {
		ix.Insert(tuple)
	}
	r.size++
	return true
}

func (r *btreeRelation) Erase(tuple domain.Tuple) bool {
	if !r.deletable {
		panic("relation: erase on a representation without delete support")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.master.Contains(tuple) {
		return false
	}
	for _, ix := range r.indices {
		ix.Erase(tuple)
	}
	r.size--
	return true
}

func (r *btreeRelation) Contains(tuple domain.Tuple) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.master.Contains(tuple)
}

func (r *btreeRelation) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cluster := IndexCluster{}
	for _, ix := range r.indices {
		cluster.Orders = append(cluster.Orders, ix.Order())
	}
	newIndices := make([]*index.Index, len(r.indices))
	newByOrder := make(map[string]*index.Index, len(r.indices))
	for i, ix := range r.indices {
		fresh := index.New(ix.Order(), r.types)
		newIndices[i] = fresh
		newByOrder[orderKey(ix.Order())] = fresh
		if ix == r.master {
			r.master = fresh
		}
	}
	r.indices = newIndices
	r.byOrder = newByOrder
	r.size = 0
}

func (r *btreeRelation) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

func (r *btreeRelation) Scan(fn func(domain.Tuple) bool) {
	r.mu.RLock()
	master := r.master
	r.mu.RUnlock()
	master.Scan(fn)
}

package relation

import (
	"sync"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/index"
)

// equivalenceRelation is closed under the reflexive/symmetric/transitive
// closure of the binary relation formed by its inserted pairs (spec.md
// §3). It is backed by a union-find over the elements it has seen;
// Contains/Scan compute the closure from the partition rather than
// storing every pair explicitly, since the closure of a class of size n
// has n^2 pairs.
type equivalenceRelation struct {
	mu       sync.Mutex
	name     string
	types    []domain.Type
	parent   map[domain.Word]domain.Word
	rank     map[domain.Word]int
	elements []domain.Word // insertion order, for deterministic Scan
	edges    []domain.Tuple
}

func newEquivalence(name string, types []domain.Type) *equivalenceRelation {
	if len(types) != 2 {
		panic("relation: equivalence relations must have arity 2")
	}
	return &equivalenceRelation{
		name:   name,
		types:  types,
		parent: make(map[domain.Word]domain.Word),
		rank:   make(map[domain.Word]int),
	}
}

func (r *equivalenceRelation) register(x domain.Word) {
	if _, ok := r.parent[x]; !ok {
		r.parent[x] = x
		r.rank[x] = 0
		r.elements = append(r.elements, x)
	}
}

func (r *equivalenceRelation) find(x domain.Word) domain.Word {
	root := x
	for r.parent[root] != root {
		root = r.parent[root]
	}
	for x != root {
		next := r.parent[x]
		r.parent[x] = root
		x = next
	}
	return root
}

// union merges the classes of a and b, returning true if they were
// previously distinct.
func (r *equivalenceRelation) union(a, b domain.Word) bool {
	r.register(a)
	r.register(b)
	ra, rb := r.find(a), r.find(b)
	if ra == rb {
		return false
	}
	if r.rank[ra] < r.rank[rb] {
		ra, rb = rb, ra
	}
	r.parent[rb] = ra
	if r.rank[ra] == r.rank[rb] {
		r.rank[ra]++
	}
	return true
}

func (r *equivalenceRelation) Name() string          { return r.name }
func (r *equivalenceRelation) Arity() int            { return 2 }
func (r *equivalenceRelation) AuxArity() int         { return 0 }
func (r *equivalenceRelation) Kind() Kind            { return Equivalence }
func (r *equivalenceRelation) Types() []domain.Type  { return r.types }
func (r *equivalenceRelation) Indices() []*index.Index { return nil }

func (r *equivalenceRelation) Index(index.Order) (*index.Index, bool) { return nil, false }

func (r *equivalenceRelation) Insert(tuple domain.Tuple) bool {
	if len(tuple) != 2 {
		panic("relation: equivalence insert requires arity-2 tuple")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := r.union(tuple[0], tuple[1])
	if changed {
		r.edges = append(r.edges, tuple.Clone())
	}
	return changed
}

func (r *equivalenceRelation) Contains(tuple domain.Tuple) bool {
	if len(tuple) != 2 {
		panic("relation: equivalence contains requires arity-2 tuple")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, b := tuple[0], tuple[1]
	if _, ok := r.parent[a]; !ok {
		return false
	}
	if _, ok := r.parent[b]; !ok {
		return false
	}
	return r.find(a) == r.find(b)
}

func (r *equivalenceRelation) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parent = make(map[domain.Word]domain.Word)
	r.rank = make(map[domain.Word]int)
	r.elements = nil
	r.edges = nil
}

func (r *equivalenceRelation) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	classes := make(map[domain.Word]int)
	for _, e := range r.elements {
		classes[r.find(e)]++
	}
	total := 0
	for _, n := range classes {
		total += n * n
	}
	return total
}

// Scan enumerates the full reflexive/symmetric/transitive closure: for
// every class, every ordered pair of its members (including self-pairs).
func (r *equivalenceRelation) Scan(fn func(domain.Tuple) bool) {
	r.mu.Lock()
	classes := make(map[domain.Word][]domain.Word)
	for _, e := range r.elements {
		root := r.find(e)
		classes[root] = append(classes[root], e)
	}
	r.mu.Unlock()

	for _, members := range classes {
		for _, a := range members {
			for _, b := range members {
				if !fn(domain.Tuple{a, b}) {
					return
				}
			}
		}
	}
}

// ExtendAndInsert merges this relation's equivalence classes into
// target, which must also be an equivalence relation (spec.md §4.11
// MergeExtend "defined only for equivalence relations").
func (r *equivalenceRelation) ExtendAndInsert(target Relation) bool {
	t, ok := target.(*equivalenceRelation)
	if !ok {
		panic("relation: ExtendAndInsert target must be an equivalence relation")
	}
	r.mu.Lock()
	edges := make([]domain.Tuple, len(r.edges))
	copy(edges, r.edges)
	r.mu.Unlock()

	changed := false
	for _, e := range edges {
		if t.Insert(e) {
			changed = true
		}
	}
	return changed
}

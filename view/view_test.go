package view

import (
	"testing"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/index"
	"github.com/Pudrick/Souffle-mod/relation"
)

func newTestRelation(t *testing.T) relation.Relation {
	t.Helper()
	types := []domain.Type{domain.Signed, domain.Signed}
	order := index.Order{0, 1}
	return relation.New(nil, "edge", types, relation.BTree, relation.IndexCluster{Orders: []index.Order{order}})
}

func TestViewContainsAndScan(t *testing.T) {
	rel := newTestRelation(t)
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)})

	v := New(rel, index.Order{0, 1}, 2)
	if !v.Contains(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)}) {
		t.Fatal("expected inserted tuple to be visible through the view")
	}
	count := 0
	v.Scan(func(domain.Tuple) bool { count++; return true })
	if count != 1 {
		t.Fatalf("expected one tuple scanned, got %d", count)
	}
}

func TestViewUseAfterDiscardPanics(t *testing.T) {
	rel := newTestRelation(t)
	v := New(rel, index.Order{0, 1}, 2)
	v.Discard()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on use after discard")
		}
	}()
	v.Contains(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)})
}

func TestSetBindAndGetByGlobalID(t *testing.T) {
	rel := newTestRelation(t)
	var s Set
	v7 := New(rel, index.Order{0, 1}, 2)
	v2 := New(rel, index.Order{0, 1}, 2)
	s.Bind(7, v7)
	s.Bind(2, v2)

	got, ok := s.Get(7)
	if !ok || got != v7 {
		t.Fatal("expected to retrieve the view bound under id 7")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 registered views, got %d", s.Len())
	}
}

func TestSetDiscardAllClearsAndDiscards(t *testing.T) {
	rel := newTestRelation(t)
	var s Set
	v := New(rel, index.Order{0, 1}, 2)
	s.Bind(0, v)
	s.DiscardAll()

	if s.Len() != 0 {
		t.Fatal("expected an empty set after DiscardAll")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected the discarded view to panic on use")
		}
	}()
	v.Contains(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)})
}

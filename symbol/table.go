// Package symbol implements the process-wide string interning table
// shared by every domain word tagged as a symbol (spec.md §3).
package symbol

import (
	"sync"

	"github.com/Pudrick/Souffle-mod/domain"
)

// Table interns strings to domain ids and back. Encode is idempotent;
// all operations are safe for concurrent use by multiple evaluator
// workers (spec.md §5 "Symbol table ... concurrent; encode/pack safe
// from any worker").
type Table struct {
	mu     sync.RWMutex
	byStr  map[string]domain.Word
	byID   []string // index 0 unused, mirrors record.Table's nil convention
}

// New returns an empty symbol table. Id 0 is never assigned to a string
// so that a zero Word is distinguishable from any interned symbol,
// mirroring the record table's nil convention (spec.md §3).
func New() *Table {
	return &Table{
		byStr: make(map[string]domain.Word),
		byID:  []string{""},
	}
}

// Encode interns str, returning its domain id. Calling Encode twice with
// the same string returns the same id.
func (t *Table) Encode(str string) domain.Word {
	t.mu.RLock()
	if id, ok := t.byStr[str]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byStr[str]; ok {
		return id
	}
	id := domain.FromSymbol(uint64(len(t.byID)))
	t.byID = append(t.byID, str)
	t.byStr[str] = id
	return id
}

// Decode returns the string interned under id. It panics if id was never
// produced by Encode on this table, since that indicates a structural
// error in the caller (spec.md §7 kind 1).
func (t *Table) Decode(id domain.Word) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := id.Symbol()
	if idx == 0 || idx >= uint64(len(t.byID)) {
		panic("symbol: decode of unknown id")
	}
	return t.byID[idx]
}

// WeakContains reports whether str has already been interned, without
// interning it.
func (t *Table) WeakContains(str string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byStr[str]
	return ok
}

// Len returns the number of distinct interned strings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID) - 1
}

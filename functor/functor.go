// Package functor implements the native functor bridge (spec.md
// §4.2.3, §6): invocation of resolved, pre-loaded user-defined
// functions with typed argument/return marshaling.
package functor

import (
	"fmt"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/symbol"
)

// TypeTag identifies a functor argument or return type (spec.md §6).
type TypeTag int

const (
	TSigned TypeTag = iota
	TUnsigned
	TFloat
	TSymbol
	TRecord
	TADT
)

// specializedArgLimit is the largest stateless arity InvokeStateless
// accepts when GenericEnabled is false (spec.md §4.2.3). Every call,
// whatever its arity, goes through the same marshaling code; there is
// no separate per-signature invocation path.
const specializedArgLimit = 2

// specializedStatefulArgLimit is the largest stateful arity
// InvokeStateful accepts when GenericEnabled is false (spec.md §4.2.3);
// every accepted call, whatever its arity, takes the same path.
const specializedStatefulArgLimit = 16

// StatelessFunc receives typed arguments already bit-cast/decoded per
// its descriptor's ArgTypes and returns a typed result. Symbol
// arguments arrive as decoded Go strings (this repository's Go-idiomatic
// stand-in for the source's zero-terminated C-string marshaling); the
// returned symbol is re-interned by Bridge.InvokeStateless.
type StatelessFunc func(args []any) any

// StatefulFunc additionally receives the symbol and record tables by
// reference and both takes and returns raw domain words.
type StatefulFunc func(sym *symbol.Table, rec *record.Table, args []domain.Word) domain.Word

// Descriptor is the resolved-functor metadata NodeGenerator step 5
// records: symbol plus (isStateful, argTypes, returnType).
type Descriptor struct {
	Name       string
	Stateful   bool
	ArgTypes   []TypeTag
	ReturnType TypeTag
}

// CallError reports a functor invocation that could not be dispatched —
// spec.md §7 kind 4, always fatal.
type CallError struct {
	Name   string
	Reason string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("functor: cannot call %q: %s", e.Name, e.Reason)
}

// entry pairs a resolved function pointer with its descriptor, as
// NodeGenerator would have resolved it against the loaded native
// libraries.
type entry struct {
	desc      Descriptor
	stateless StatelessFunc
	stateful  StatefulFunc
}

// Bridge holds every functor resolved for one Engine run. GenericEnabled
// mirrors the source's "generic foreign-call path... compiled in" — when
// false, arities above the specialized thresholds are a hard failure
// rather than falling back to generic marshaling.
type Bridge struct {
	entries        map[string]entry
	sym            *symbol.Table
	rec            *record.Table
	GenericEnabled bool
}

// New returns an empty Bridge bound to the given symbol/record tables
// (needed to marshal TSymbol/TRecord arguments and stateful calls).
func New(sym *symbol.Table, rec *record.Table) *Bridge {
	return &Bridge{
		entries:        make(map[string]entry),
		sym:            sym,
		rec:            rec,
		GenericEnabled: true,
	}
}

// RegisterStateless resolves a stateless functor's name to fn.
func (b *Bridge) RegisterStateless(desc Descriptor, fn StatelessFunc) {
	desc.Stateful = false
	b.entries[desc.Name] = entry{desc: desc, stateless: fn}
}

// RegisterStateful resolves a stateful functor's name to fn.
func (b *Bridge) RegisterStateful(desc Descriptor, fn StatefulFunc) {
	desc.Stateful = true
	b.entries[desc.Name] = entry{desc: desc, stateful: fn}
}

// Descriptor returns the resolved descriptor for name, if any.
func (b *Bridge) Descriptor(name string) (Descriptor, bool) {
	e, ok := b.entries[name]
	return e.desc, ok
}

// marshalArg converts a raw domain word to its typed Go representation
// per tag, decoding symbols through the symbol table as spec.md's
// "symbol arguments ... allocated from the symbol table decode call"
// requires.
func (b *Bridge) marshalArg(w domain.Word, tag TypeTag) any {
	switch tag {
	case TUnsigned:
		return w.Unsigned()
	case TFloat:
		return w.Float()
	case TSymbol:
		return b.sym.Decode(w)
	case TRecord, TADT:
		panic("functor: record/adt arguments are not supported via the generic marshaling path")
	default:
		return w.Signed()
	}
}

func (b *Bridge) unmarshalResult(v any, tag TypeTag) domain.Word {
	switch tag {
	case TUnsigned:
		return domain.FromUnsigned(v.(uint64))
	case TFloat:
		return domain.FromFloat(v.(float64))
	case TSymbol:
		return b.sym.Encode(v.(string))
	case TRecord, TADT:
		panic("functor: record/adt return values are not supported via the generic marshaling path")
	default:
		return domain.FromSigned(v.(int64))
	}
}

// InvokeStateless calls the named stateless functor with raw arguments,
// marshaling by its registered ArgTypes/ReturnType.
func (b *Bridge) InvokeStateless(name string, args []domain.Word) (domain.Word, error) {
	e, ok := b.entries[name]
	if !ok || e.stateless == nil {
		return 0, &CallError{Name: name, Reason: "no stateless functor resolved with this name"}
	}
	if len(args) != len(e.desc.ArgTypes) {
		return 0, &CallError{Name: name, Reason: "argument count does not match descriptor"}
	}
	if len(args) > specializedArgLimit && !b.GenericEnabled {
		return 0, &CallError{Name: name, Reason: "arity exceeds the specialized path and the generic path is disabled"}
	}
	typed := make([]any, len(args))
	for i, w := range args {
		typed[i] = b.marshalArg(w, e.desc.ArgTypes[i])
	}
	result := e.stateless(typed)
	return b.unmarshalResult(result, e.desc.ReturnType), nil
}

// InvokeStateful calls the named stateful functor with raw arguments and
// the bridge's symbol/record tables.
func (b *Bridge) InvokeStateful(name string, args []domain.Word) (domain.Word, error) {
	e, ok := b.entries[name]
	if !ok || e.stateful == nil {
		return 0, &CallError{Name: name, Reason: "no stateful functor resolved with this name"}
	}
	if len(args) > specializedStatefulArgLimit && !b.GenericEnabled {
		return 0, &CallError{Name: name, Reason: "arity exceeds 16 and the generic path is disabled"}
	}
	return e.stateful(b.sym, b.rec, args), nil
}

// Package execctx implements the per-execution-thread environment
// spec.md §3 calls Context: tuple-id bindings, a variable map, the
// subroutine argument/return buffers, and the set of views live for the
// current nested operation.
package execctx

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/view"
)

// Context is execution-local state. It is never shared between
// concurrent workers; Clone produces an independent copy for each
// Parallel* fan-out worker (spec.md §4.7, §5, §9 "Contexts must be
// cloned not shared per worker").
type Context struct {
	tuples map[int]domain.Tuple
	vars   map[string]domain.Word
	args   domain.Tuple
	rets   []domain.Word
	views  view.Set
}

// New returns an empty Context.
func New() *Context {
	return &Context{
		tuples: make(map[int]domain.Tuple),
		vars:   make(map[string]domain.Word),
	}
}

// BindTuple associates tupleID (assigned by node.Generator) with a
// borrowed tuple, valid until the enclosing operation rebinds or the
// Context goes out of scope.
func (c *Context) BindTuple(tupleID int, t domain.Tuple) {
	c.tuples[tupleID] = t
}

// Tuple returns the tuple bound to tupleID. It panics if nothing is
// bound, since every read is generated by node.Generator against a
// tupleID it itself allocated and bound along some earlier code path —
// an unbound read is a structural error (spec.md §7 kind 1).
func (c *Context) Tuple(tupleID int) domain.Tuple {
	t, ok := c.tuples[tupleID]
	if !ok {
		panic("execctx: read of unbound tuple id")
	}
	return t
}

// SetVar assigns a variable.
func (c *Context) SetVar(name string, w domain.Word) {
	c.vars[name] = w
}

// Var reads a variable.
func (c *Context) Var(name string) (domain.Word, bool) {
	w, ok := c.vars[name]
	return w, ok
}

// SetArgs installs the read-only argument sequence for a subroutine
// call.
func (c *Context) SetArgs(args domain.Tuple) { c.args = args }

// Arg returns the i-th subroutine argument.
func (c *Context) Arg(i int) domain.Word { return c.args[i] }

// NumArgs returns the number of subroutine arguments available.
func (c *Context) NumArgs() int { return len(c.args) }

// AppendReturn appends w to the subroutine's return-value sequence.
func (c *Context) AppendReturn(w domain.Word) {
	c.rets = append(c.rets, w)
}

// Returns returns the accumulated subroutine return values.
func (c *Context) Returns() []domain.Word { return c.rets }

// Views returns the set of views live in this Context.
func (c *Context) Views() *view.Set { return &c.views }

// BindView registers v under viewID, the global id node.Generator
// assigned the operation that owns this view.
func (c *Context) BindView(viewID int, v *view.View) {
	c.views.Bind(viewID, v)
}

// View returns the view bound to viewID. It panics if none is live: a
// node only ever reads a viewID that its enclosing Query already bound
// during view-plan setup (spec.md §4.8), so a miss is a structural
// error (spec.md §7 kind 1).
func (c *Context) View(viewID int) *view.View {
	v, ok := c.views.Get(viewID)
	if !ok {
		panic("execctx: read of unbound view id")
	}
	return v
}

// Clone returns an independent copy of c suitable for handing to a
// Parallel* worker: tuple bindings and variables are copied by value,
// arguments are shared (read-only), and the return buffer and view set
// start empty (a worker chunk of a Scan does not itself return through
// a subroutine, and creates its own views per spec.md §4.7).
func (c *Context) Clone() *Context {
	clone := New()
	for k, v := range c.tuples {
		clone.tuples[k] = v
	}
	for k, v := range c.vars {
		clone.vars[k] = v
	}
	clone.args = c.args
	return clone
}

// Package eval implements the tree-walking evaluator: the single
// dispatch-by-kind core that drives an executable node.Node tree
// against an execctx.Context (spec.md §4). Everything about a specific
// RAM program — its relations, subroutine trees, functor bridge — is
// carried in a Runtime, constructed once by the owning Engine.
package eval

import (
	"sync/atomic"

	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/profile"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/regexcache"
	"github.com/Pudrick/Souffle-mod/relation"
	"github.com/Pudrick/Souffle-mod/symbol"
)

// IOProvider is the Reader/Writer collaborator spec.md §6 describes:
// the core passes an IO directive through opaquely, along with the
// relation and the two interning tables a format may need to decode or
// encode symbols and records. A thrown failure is fatal (spec.md §7
// kind 3): a non-nil error makes Execute panic with an "io" *Fault.
type IOProvider interface {
	Input(rel relation.Relation, dir *ram.IODirective, sym *symbol.Table, rec *record.Table) error
	Output(rel relation.Relation, dir *ram.IODirective, sym *symbol.Table, rec *record.Table) error
	PrintSize(rel relation.Relation, dir *ram.IODirective) error
}

// Runtime bundles everything one Engine run needs to evaluate a node
// tree: the named subroutine trees (spec.md §4.2 Control "Call"), the
// process-wide symbol/record tables, the functor bridge, the regex
// cache, the profiling sink, the configured worker count, the counters
// spec.md §5 calls out as atomic, and the IO collaborator.
type Runtime struct {
	Subroutines map[string]*node.Node
	Symbols     *symbol.Table
	Records     *record.Table
	Functors    *functor.Bridge
	Regex       *regexcache.Cache
	Profile     profile.EventSink
	Metrics     *profile.Metrics
	Threads     int
	IO          IOProvider

	counter          int64
	iterationCounter int64
}

// NewRuntime returns a Runtime ready to drive Execute. profile may be
// profile.NoOp() when profiling is disabled (spec.md §6 "Process-wide
// ... in profile mode, profiling is enabled").
func NewRuntime(subs map[string]*node.Node, sym *symbol.Table, rec *record.Table, fn *functor.Bridge, regex *regexcache.Cache, prof profile.EventSink, threads int, io IOProvider) *Runtime {
	if threads < 1 {
		threads = 1
	}
	return &Runtime{
		Subroutines: subs,
		Symbols:     sym,
		Records:     rec,
		Functors:    fn,
		Regex:       regex,
		Profile:     prof,
		Metrics:     profile.NewMetrics(),
		Threads:     threads,
		IO:          io,
	}
}

// nextCounter returns the next auto-increment value. Uniqueness across
// concurrent workers is guaranteed; ordering is not (spec.md §5
// "Counter ... a single atomic integer").
func (rt *Runtime) nextCounter() int64 {
	return atomic.AddInt64(&rt.counter, 1) - 1
}

// IterationCounter returns the current Loop iteration counter (spec.md
// §4.10, §8 "the iteration counter observed inside child begins at 0
// and increments monotonically").
func (rt *Runtime) IterationCounter() int {
	return int(atomic.LoadInt64(&rt.iterationCounter))
}

// Package engine owns process-wide run state for a single evaluation
// (spec.md §3 "Engine"): it builds the symbol/record tables, the
// functor bridge, the regex cache, the relation set, the executable
// node tree, and drives the recover-at-the-boundary policy spec.md §7
// describes, so that eval never needs to know it is being driven by a
// program instead of a test.
package engine

import (
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/eval"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/internal/logging"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/profile"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/regexcache"
	"github.com/Pudrick/Souffle-mod/relation"
	"github.com/Pudrick/Souffle-mod/symbol"
)

// Engine is process-wide state for a single run (spec.md §3): the
// generated node tree, the named subroutine trees, relation handles,
// the symbol/record tables, the regex cache, the functor bridge, and
// the two atomic counters the Runtime exposes. It is constructed from
// a ram.TranslationUnit and a Config, torn down after ExecuteMain
// returns, and owns every relation for its whole lifetime (spec.md §3
// "Engine ... owns every relation").
type Engine struct {
	runID   string
	log     logging.Logger
	config  Config
	unit    *ram.TranslationUnit
	runtime *eval.Runtime

	relations map[string]*relation.Slot
	main      *node.Node

	restoreMaxProcs func()
	sig             *signalHook
	closed          int32
}

// New builds an Engine ready to run unit: it materializes unit's
// declared relations (spec.md §3 "created once at Engine setup"),
// builds the symbol/record tables and functor bridge, resolves the
// translation unit's subroutine trees through a single node.Generator
// so view ids stay unique across the whole program (spec.md §4.1), and
// installs the signal hook spec.md §6 requires on entry.
//
// registerFunctors, if non-nil, is called with the functor.Bridge and
// the freshly materialized relation set after relations are built but
// before generation, so the caller can register every stateless/
// stateful functor the program's KUserOperator nodes will resolve by
// name — including stateful functors that close over a named
// relation's handle (e.g. a fixed-point convergence check keyed off a
// relation's cardinality).
func New(unit *ram.TranslationUnit, cfg Config, registerFunctors func(*functor.Bridge, map[string]*relation.Slot)) (*Engine, error) {
	if unit == nil {
		return nil, newConfigError("nil translation unit")
	}
	if unit.MainSubroutine == "" {
		return nil, newConfigError("translation unit names no main subroutine")
	}
	if _, ok := unit.Subroutines[unit.MainSubroutine]; !ok {
		return nil, newConfigError("main subroutine %q not found among %d subroutines", unit.MainSubroutine, len(unit.Subroutines))
	}

	runID := uuid.New().String()
	log := logging.Default.WithFields(logging.Fields{"run_id": runID})

	restore, err := maxprocs.Set(maxprocs.Logger(log.Debugf))
	if err != nil {
		log.Warnf("automaxprocs: %v, leaving GOMAXPROCS untouched", err)
		restore = func() {}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = defaultThreadCount()
	}

	sym := symbol.New()
	rec := record.New()
	fn := functor.New(sym, rec)
	regex := regexcache.New(cfg.RegexCacheSize)

	relations, err := buildRelations(unit.Relations, cfg.RelationProvider)
	if err != nil {
		restore()
		return nil, err
	}
	if registerFunctors != nil {
		registerFunctors(fn, relations)
	}

	gen := node.NewGenerator(relations, fn)
	generated := gen.GenerateSubroutines(unit.Subroutines)
	main, ok := generated[unit.MainSubroutine]
	if !ok {
		restore()
		return nil, newConfigError("generator produced no tree for main subroutine %q", unit.MainSubroutine)
	}

	sink := profile.EventSink(profile.NoOp())
	if cfg.Profile {
		sink = profile.New()
		if cfg.ProfileOutputFile != "" {
			if err := sink.SetOutputFile(cfg.ProfileOutputFile); err != nil {
				log.Warnf("profile: %v, continuing without a profile output file", err)
			}
		}
	}

	rt := eval.NewRuntime(generated, sym, rec, fn, regex, sink, threads, cfg.IO)
	rt.Metrics.SetCounts(len(relations), countRules(generated))

	e := &Engine{
		runID:           runID,
		log:             log,
		config:          cfg,
		unit:            unit,
		runtime:         rt,
		relations:       relations,
		main:            main,
		restoreMaxProcs: restore,
	}
	e.sig = installSignalHook(e, cfg.Verbose)
	return e, nil
}

// buildRelations materializes every declared relation once, rejecting
// duplicate names up front (spec.md §3 "Relations: created once at
// Engine setup ... never re-allocated during a program run").
func buildRelations(decls []ram.RelationDecl, provider relation.Provider) (map[string]*relation.Slot, error) {
	out := make(map[string]*relation.Slot, len(decls))
	for _, d := range decls {
		if _, exists := out[d.Name]; exists {
			return nil, newConfigError("duplicate relation declaration %q", d.Name)
		}
		out[d.Name] = relation.NewSlot(relation.New(provider, d.Name, d.Types, d.Kind, d.Cluster))
	}
	return out, nil
}

// countRules is spec.md §6's one-time ruleCount pass: every KQuery node
// reachable from any generated subroutine is a rule (spec.md §4.11
// "visit(program, [&](const ram::Query&) { ++ruleCount; })" in the
// original source).
func countRules(subroutines map[string]*node.Node) int {
	count := 0
	for _, sub := range subroutines {
		node.Walk(sub, func(n *node.Node) {
			if n.Kind == ram.KQuery {
				count++
			}
		})
	}
	return count
}

// defaultThreadCount is the fallback spec.md §5 implies when a caller
// supplies no explicit thread count: GOMAXPROCS after automaxprocs has
// already adjusted it for the container's CPU quota.
func defaultThreadCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// Relation returns the handle materialized for name, or false if unit
// declared no such relation. Intended for a caller (e.g. a test, or an
// embedding CLI) to preload or inspect relations around ExecuteMain.
func (e *Engine) Relation(name string) (relation.Relation, bool) {
	s, ok := e.relations[name]
	if !ok {
		return nil, false
	}
	return s.Rel, true
}

// RunID returns the per-run correlation id attached to this Engine's
// log fields and, when profiling is enabled, its config record.
func (e *Engine) RunID() string { return e.runID }

// ExecuteMain runs the generated main subroutine to completion (spec.md
// §3 "torn down after executeMain returns"). Fatal conditions raised by
// eval as a *eval.Fault are recovered here — the only recover point in
// the whole repository (spec.md §7 "only fatal errors ... terminate")
// — and reported as a typed *Error instead of crashing the process.
func (e *Engine) ExecuteMain() (err *Error) {
	if atomic.LoadInt32(&e.closed) != 0 {
		return newConfigError("ExecuteMain called on a closed Engine")
	}
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(*eval.Fault)
			if !ok {
				panic(r)
			}
			e.log.Errorf("%s", fault.Error())
			err = &Error{Code: Code(fault.Kind), Message: fault.Message}
		}
	}()

	e.runtime.Profile.MakeConfigRecord("run_id", e.runID)
	e.runtime.Profile.MakeConfigRecord("relation_count", strconv.Itoa(len(e.relations)))
	e.runtime.Profile.MakeConfigRecord("subroutine_count", strconv.Itoa(len(e.unit.Subroutines)))
	defer func() { e.runtime.Metrics.Emit(e.runtime.Profile) }()
	e.runtime.Profile.StartTimer()
	defer e.runtime.Profile.StopTimer()

	ctx := execctx.New()
	result := eval.Execute(e.runtime, e.main, ctx)
	if result == domain.Nil {
		e.log.Debugf("main subroutine returned failure (this is not itself an error)")
	}
	return nil
}

// Close tears the Engine down: it clears the signal hook and restores
// GOMAXPROCS (spec.md §6 "cleared on exit"). Relations are not
// explicitly released — they are ordinary Go values collected once the
// Engine itself is, matching spec.md's Non-goal of persistent storage
// requiring no explicit close.
func (e *Engine) Close() {
	if !atomic.CompareAndSwapInt32(&e.closed, 0, 1) {
		return
	}
	e.sig.clear()
	e.restoreMaxProcs()
}

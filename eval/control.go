package eval

import (
	"sync/atomic"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/internal/logging"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/relation"
	"github.com/Pudrick/Souffle-mod/view"
)

// execInsert implements Insert/GuardedInsert (spec.md §4.9): a total
// super-instruction pattern materializes the tuple to add; a guarded
// insert additionally requires Guard to hold before Insert is
// attempted.
func execInsert(rt *Runtime, n *node.Node, ctx *execctx.Context, guarded bool) domain.Word {
	if guarded && !truth(execute(rt, n.Guard, ctx, nil)) {
		return trueWord
	}
	tuple, _ := materialize(rt, ctx, n.SuperInstr)
	n.RelationSlot.Rel.Insert(tuple)
	return trueWord
}

// execErase implements Erase (spec.md §4.9); the target relation must
// implement relation.Eraser (a btree-with-delete representation).
func execErase(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	tuple, _ := materialize(rt, ctx, n.SuperInstr)
	eraser, ok := n.RelationSlot.Rel.(relation.Eraser)
	if !ok {
		structural("erase on a relation that does not support deletion: %q", n.RelationSlot.Rel.Name())
	}
	eraser.Erase(tuple)
	return trueWord
}

// execUnpackRecord implements spec.md §8's boundary behavior: unpacking
// the nil record reference short-circuits without running Nested at
// all, rather than unpacking a zeroed tuple.
func execUnpackRecord(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	ref := execute(rt, n.RecordExpr, ctx, nil)
	if ref == domain.Nil {
		return trueWord
	}
	tuple := rt.Records.Unpack(ref, n.RecordArity)
	ctx.BindTuple(n.TupleID, tuple)
	return execute(rt, n.Nested, ctx, nil)
}

// execLoop implements spec.md §4.10: reset the shared iteration counter
// to 0, repeat Nested until it signals a stop (via a Break/Exit
// returning false), incrementing the counter after each successful
// iteration, then reset it to 0 again on termination.
func execLoop(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	atomic.StoreInt64(&rt.iterationCounter, 0)
	for {
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			atomic.StoreInt64(&rt.iterationCounter, 0)
			return trueWord
		}
		atomic.AddInt64(&rt.iterationCounter, 1)
	}
}

// execCall implements spec.md §4.2/§9's subroutine call: arguments are
// evaluated in the caller's Context, then run against a fresh Context
// carrying only those arguments — a subroutine has no visibility into
// its caller's tuple/variable bindings.
func execCall(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	sub, ok := rt.Subroutines[n.SubroutineName]
	if !ok {
		structural("call to unresolved subroutine %q", n.SubroutineName)
	}
	args := make(domain.Tuple, len(n.CallArgs))
	for i, a := range n.CallArgs {
		args[i] = execute(rt, a, ctx, nil)
	}
	callee := execctx.New()
	callee.SetArgs(args)
	result := execute(rt, sub, callee, nil)
	for _, r := range callee.Returns() {
		ctx.AppendReturn(r)
	}
	return result
}

func relationSwap(n *node.Node) {
	relation.Swap(n.RelationSlot, n.SecondRelationSlot)
}

// execMergeExtend implements spec.md §4.11: extend the target
// equivalence relation with the source's raw edges (implemented via
// relation.Extender), rebuilding the target's closure.
func execMergeExtend(n *node.Node) domain.Word {
	extender, ok := n.RelationSlot.Rel.(relation.Extender)
	if !ok {
		structural("merge-extend on a relation that does not support extension: %q", n.RelationSlot.Rel.Name())
	}
	extender.ExtendAndInsert(n.SecondRelationSlot.Rel)
	return trueWord
}

// execIO dispatches to the configured IOProvider (spec.md §6). A
// failure is fatal (spec.md §7 kind 3); an unrecognized operation is
// logged as a warning and skipped (spec.md §7 kind 2).
func execIO(rt *Runtime, n *node.Node) domain.Word {
	if rt.IO == nil {
		structural("IO operation with no IOProvider configured")
	}
	var err error
	switch n.IO.Operation {
	case "input":
		err = rt.IO.Input(n.RelationSlot.Rel, n.IO, rt.Symbols, rt.Records)
	case "output":
		err = rt.IO.Output(n.RelationSlot.Rel, n.IO, rt.Symbols, rt.Records)
	case "printsize":
		err = rt.IO.PrintSize(n.RelationSlot.Rel, n.IO)
	default:
		logging.Default.Warnf("unrecognized IO operation %q on %q, skipped", n.IO.Operation, n.RelationSlot.Rel.Name())
	}
	if err != nil {
		ioFault("%s on %q: %v", n.IO.Operation, n.RelationSlot.Rel.Name(), err)
	}
	return trueWord
}

// execEstimateJoinSize implements spec.md §4.11: walk the view
// allocated for CountColumns, skip any tuple that does not match
// ConstantMask's fixed columns, and group what remains by its free
// CountColumns to report the total matching tuple count against the
// number of distinct groups as duplicates via the profiling sink's
// recursive/non-recursive count events. Grounded on Souffle's
// evalEstimateJoinSize (original_source/src/interpreter/Engine.cpp),
// which walks the shadow's chosen index and applies std::all_of over
// the constants map before counting a tuple at all.
func execEstimateJoinSize(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	v := view.New(n.RelationSlot.Rel, n.SuperInstr.Order, len(n.SuperInstr.Types))
	defer v.Discard()

	constVals := make([]domain.Word, len(n.CountColumns))
	hasConst := make([]bool, len(n.CountColumns))
	for i, mask := range n.ConstantMask {
		if mask != nil {
			constVals[i] = execute(rt, mask, ctx, nil)
			hasConst[i] = true
		}
	}

	groups := make(map[string]struct{})
	var total int64
	v.Scan(func(t domain.Tuple) bool {
		if !matchesConstantMask(n, t, constVals, hasConst) {
			return true
		}
		total++
		groups[groupKey(n, t, hasConst)] = struct{}{}
		return true
	})
	distinct := int64(len(groups))
	if n.Recursive {
		rt.Profile.MakeRecursiveCountEvent(n.RelationSlot.Rel.Name(), total, total-distinct)
	} else {
		rt.Profile.MakeNonRecursiveCountEvent(n.RelationSlot.Rel.Name(), total, total-distinct)
	}
	return trueWord
}

// matchesConstantMask reports whether every ConstantMask-fixed column
// of t equals the constant computed for it; wildcard (nil-mask)
// columns always match.
func matchesConstantMask(n *node.Node, t domain.Tuple, constVals []domain.Word, hasConst []bool) bool {
	for i, col := range n.CountColumns {
		if hasConst[i] && t[col] != constVals[i] {
			return false
		}
	}
	return true
}

// groupKey builds the grouping key from CountColumns' free (non-masked)
// columns only — every counted tuple already agrees on the masked
// columns' values, so including them would only pad every key alike.
func groupKey(n *node.Node, t domain.Tuple, hasConst []bool) string {
	key := make([]byte, 0, 8*len(n.CountColumns))
	for i, col := range n.CountColumns {
		if hasConst[i] {
			continue
		}
		v := t[col]
		key = append(key,
			byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
			byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
	}
	return string(key)
}

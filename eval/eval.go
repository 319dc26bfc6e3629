package eval

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/ram"
)

var (
	trueWord  = domain.FromSigned(1)
	falseWord = domain.FromSigned(0)
)

func truth(w domain.Word) bool     { return w != falseWord }
func boolWord(b bool) domain.Word {
	if b {
		return trueWord
	}
	return falseWord
}

// Execute is the total function `execute(node, ctx) -> domain` spec.md
// §4.2 describes: dispatch is by node kind, every kind is handled, and
// the returned word carries either an expression's value or a
// statement's success (non-zero = continue, zero = break/halt).
func Execute(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	return execute(rt, n, ctx, nil)
}

// execute is Execute's internal entry point. viewsForNested is non-nil
// only when n is the direct Nested child of a parallel Query: it is the
// list of view-owning descendants each worker must bind its own views
// for before scanning its chunk (spec.md §4.7, §4.8).
func execute(rt *Runtime, n *node.Node, ctx *execctx.Context, viewsForNested []*node.Node) domain.Word {
	if n == nil {
		structural("nil node reached by dispatch")
	}
	switch n.Kind {
	// --- Expressions ---
	case ram.KConstant:
		return n.Value
	case ram.KVariable:
		w, ok := ctx.Var(n.VarName)
		if !ok {
			structural("read of unassigned variable %q", n.VarName)
		}
		return w
	case ram.KTupleElement:
		return ctx.Tuple(n.TupleID)[n.Column]
	case ram.KAutoIncrement:
		return domain.FromSigned(rt.nextCounter())
	case ram.KPackRecord:
		return evalPackRecord(rt, n, ctx)
	case ram.KIntrinsicUnary:
		return evalUnary(rt, n, ctx)
	case ram.KIntrinsicBinary:
		return evalBinary(rt, n, ctx)
	case ram.KNestedIntrinsic:
		return evalRangeEmitter(rt, n, ctx)
	case ram.KUserOperator:
		return evalUserOperator(rt, n, ctx)

	// --- Predicates ---
	case ram.KTrue:
		return trueWord
	case ram.KFalse:
		return falseWord
	case ram.KConjunction:
		for _, c := range n.Conjuncts {
			if !truth(execute(rt, c, ctx, nil)) {
				return falseWord
			}
		}
		return trueWord
	case ram.KNegation:
		return boolWord(!truth(execute(rt, n.Negated, ctx, nil)))
	case ram.KConstraint:
		return evalConstraint(rt, n, ctx)

	// --- Operations ---
	case ram.KScan:
		return execScan(rt, n, ctx)
	case ram.KIndexScan:
		return execIndexScan(rt, n, ctx)
	case ram.KIfExists:
		return execIfExists(rt, n, ctx)
	case ram.KIndexIfExists:
		return execIndexIfExists(rt, n, ctx)
	case ram.KParallelScan, ram.KParallelIndexScan, ram.KParallelIfExists, ram.KParallelIndexIfExists:
		return execParallelScan(rt, n, ctx, viewsForNested)
	case ram.KAggregate:
		return execAggregate(rt, n, ctx)
	case ram.KIndexAggregate:
		return execIndexAggregate(rt, n, ctx)
	case ram.KParallelAggregate, ram.KParallelIndexAggregate:
		return execParallelAggregate(rt, n, ctx, viewsForNested)
	case ram.KUnpackRecord:
		return execUnpackRecord(rt, n, ctx)
	case ram.KFilter:
		if !truth(execute(rt, n.Condition, ctx, nil)) {
			return trueWord
		}
		return execute(rt, n.Nested, ctx, nil)
	case ram.KBreak:
		if truth(execute(rt, n.Condition, ctx, nil)) {
			return falseWord
		}
		return trueWord
	case ram.KInsert:
		return execInsert(rt, n, ctx, false)
	case ram.KGuardedInsert:
		return execInsert(rt, n, ctx, true)
	case ram.KErase:
		return execErase(rt, n, ctx)
	case ram.KSubroutineReturn:
		for _, op := range n.Operands {
			ctx.AppendReturn(execute(rt, op, ctx, nil))
		}
		return trueWord
	case ram.KExistenceCheck:
		return execExistenceCheck(rt, n, ctx)
	case ram.KProvenanceExistenceCheck:
		return execProvenanceExistenceCheck(rt, n, ctx)

	// --- Control ---
	case ram.KSequence, ram.KParallel:
		for _, c := range n.Sequence {
			if !truth(execute(rt, c, ctx, nil)) {
				return falseWord
			}
		}
		return trueWord
	case ram.KLoop:
		return execLoop(rt, n, ctx)
	case ram.KExit:
		return boolWord(!truth(execute(rt, n.Condition, ctx, nil)))
	case ram.KCall:
		return execCall(rt, n, ctx)
	case ram.KQuery:
		return execQuery(rt, n, ctx)
	case ram.KClear:
		n.RelationSlot.Rel.Purge()
		return trueWord
	case ram.KSwap:
		relationSwap(n)
		return trueWord
	case ram.KMergeExtend:
		return execMergeExtend(n)
	case ram.KIO:
		return execIO(rt, n)
	case ram.KLogTimer:
		rt.Profile.StartTimer()
		res := execute(rt, n.Nested, ctx, nil)
		rt.Profile.StopTimer()
		rt.Profile.MakeTimeEvent(n.LogMessage)
		return res
	case ram.KLogRelationTimer:
		rt.Profile.StartTimer()
		res := execute(rt, n.Nested, ctx, nil)
		rt.Profile.StopTimer()
		rt.Profile.MakeTimeEvent(n.LogMessage + ";" + n.RelationSlot.Rel.Name())
		return res
	case ram.KLogSize:
		rt.Profile.MakeQuantityEvent(n.LogMessage+";"+n.RelationSlot.Rel.Name(), int64(n.RelationSlot.Rel.Size()), rt.IterationCounter())
		return trueWord
	case ram.KDebugInfo:
		return execute(rt, n.Nested, ctx, nil)
	case ram.KAssign:
		ctx.SetVar(n.AssignVar, execute(rt, n.AssignExpr, ctx, nil))
		return trueWord
	case ram.KEstimateJoinSize:
		return execEstimateJoinSize(rt, n, ctx)

	default:
		structural("unreachable node kind %v", n.Kind)
		return falseWord // unreachable
	}
}

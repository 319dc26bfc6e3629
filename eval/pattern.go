package eval

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/view"
)

// materialize builds the low/high bound tuples a super-instruction
// describes (spec.md §4.3, §4.4): start from the precomputed constant/
// sentinel vectors, then overlay each TupleCopy (read from the enclosing
// Context) and ExprCopy (sub-evaluated) entry.
func materialize(rt *Runtime, ctx *execctx.Context, si *node.SuperInstruction) (low, high domain.Tuple) {
	low = si.ConstFirst.Clone()
	high = si.ConstSecond.Clone()
	for _, tc := range si.TupleFirst {
		low[tc.Column] = ctx.Tuple(tc.TupleID)[tc.Element]
	}
	for _, tc := range si.TupleSecond {
		high[tc.Column] = ctx.Tuple(tc.TupleID)[tc.Element]
	}
	for _, ec := range si.ExprFirst {
		low[ec.Column] = execute(rt, ec.Node, ctx, nil)
	}
	for _, ec := range si.ExprSecond {
		high[ec.Column] = execute(rt, ec.Node, ctx, nil)
	}
	return low, high
}

// execExistenceCheck implements spec.md §4.4: a total pattern is looked
// up directly; a partial one is a bounded range-scan existence test.
func execExistenceCheck(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	rt.Metrics.IncRelationReads(n.RelationSlot.Rel.Name())
	v := viewFor(ctx, n)
	low, high := materialize(rt, ctx, n.SuperInstr)
	if n.SuperInstr.Total {
		return boolWord(v.Contains(low))
	}
	return boolWord(v.ContainsRange(low, high))
}

// execProvenanceExistenceCheck implements spec.md §4.4's provenance
// variant: the two trailing auxiliary columns are forced to their typed
// unbounded sentinels regardless of the compiled pattern, the first
// matching tuple under that range is fetched, and its last column
// (the provenance level) is compared against ProvenanceExpr via <=.
func execProvenanceExistenceCheck(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	rt.Metrics.IncRelationReads(n.RelationSlot.Rel.Name())
	v := viewFor(ctx, n)
	low, high := materialize(rt, ctx, n.SuperInstr)
	arity := len(n.SuperInstr.Types)
	if arity < 2 {
		structural("provenance existence check requires at least 2 auxiliary columns")
	}
	levelType := n.SuperInstr.Types[arity-1]
	low[arity-2] = domain.MinSentinel(n.SuperInstr.Types[arity-2])
	high[arity-2] = domain.MaxSentinel(n.SuperInstr.Types[arity-2])
	low[arity-1] = domain.MinSentinel(levelType)
	high[arity-1] = domain.MaxSentinel(levelType)

	level := execute(rt, n.ProvenanceExpr, ctx, nil)
	found := false
	v.RangeScan(low, high, func(t domain.Tuple) bool {
		found = domain.Compare(t[arity-1], level, levelType) <= 0
		return false
	})
	return boolWord(found)
}

func viewFor(ctx *execctx.Context, n *node.Node) *view.View {
	return ctx.View(n.ViewID)
}

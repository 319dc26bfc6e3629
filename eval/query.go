package eval

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/view"
)

// execQuery implements the two-phase view-plan staging spec.md §4.8
// describes: view-free filters run first with no views bound; then the
// views ViewsForFilter names are materialized and the remaining
// FilterOps run; if every filter passes, Nested runs — with its own
// views bound fresh unless Nested is itself a Parallel* operation, in
// which case each worker binds ViewsForNested independently
// (spec.md §4.7).
func execQuery(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	rt.Metrics.IncFrequency(n.ProfileText, rt.IterationCounter())

	for _, f := range n.ViewFreeFilter {
		if !truth(execute(rt, f, ctx, nil)) {
			return trueWord
		}
	}

	if len(n.FilterOps) > 0 {
		bound := bindViews(ctx, n.ViewsForFilter)
		defer discardViews(ctx, bound)
		for _, f := range n.FilterOps {
			if !truth(execute(rt, f, ctx, nil)) {
				return trueWord
			}
		}
	}

	if isParallelKind(n.Nested) {
		return execute(rt, n.Nested, ctx, n.ViewsForNested)
	}

	bound := bindViews(ctx, n.ViewsForNested)
	defer discardViews(ctx, bound)
	return execute(rt, n.Nested, ctx, nil)
}

func isParallelKind(n *node.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case ram.KParallelScan, ram.KParallelIndexScan, ram.KParallelIfExists, ram.KParallelIndexIfExists,
		ram.KParallelAggregate, ram.KParallelIndexAggregate:
		return true
	}
	return false
}

// bindViews materializes and binds one view.View per node in nodes,
// returning the view ids bound so the caller can discard exactly those.
func bindViews(ctx *execctx.Context, nodes []*node.Node) []int {
	ids := make([]int, 0, len(nodes))
	for _, vn := range nodes {
		order := index0(vn)
		ctx.BindView(vn.ViewID, view.New(vn.RelationSlot.Rel, order, len(vn.SuperInstr.Types)))
		ids = append(ids, vn.ViewID)
	}
	return ids
}

func discardViews(ctx *execctx.Context, ids []int) {
	for _, id := range ids {
		if v, ok := ctx.Views().Get(id); ok {
			v.Discard()
		}
	}
}

package eval

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/parallel"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/view"
)

// execScan implements spec.md §4.6's unindexed full scan: bind each
// tuple in turn and run Nested, stopping the whole scan as soon as
// Nested signals a break.
func execScan(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	result := trueWord
	n.RelationSlot.Rel.Scan(func(t domain.Tuple) bool {
		ctx.BindTuple(n.TupleID, t)
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			result = falseWord
			return false
		}
		return true
	})
	return result
}

// execIndexScan implements spec.md §4.6's indexed range scan: the
// materialized [low, high] bound restricts iteration to a single view.
func execIndexScan(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	v := ctx.View(n.ViewID)
	low, high := materialize(rt, ctx, n.SuperInstr)
	result := trueWord
	v.RangeScan(low, high, func(t domain.Tuple) bool {
		ctx.BindTuple(n.TupleID, t)
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			result = falseWord
			return false
		}
		return true
	})
	return result
}

// execIfExists implements spec.md §4.6: scan for the first tuple
// satisfying Condition, bind it, and run Nested exactly once. A
// relation with no satisfying tuple is not a failure — Nested simply
// never runs.
func execIfExists(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	result := trueWord
	n.RelationSlot.Rel.Scan(func(t domain.Tuple) bool {
		ctx.BindTuple(n.TupleID, t)
		if !truth(execute(rt, n.Condition, ctx, nil)) {
			return true
		}
		result = execute(rt, n.Nested, ctx, nil)
		return false
	})
	return result
}

// execIndexIfExists is execIfExists restricted to a view's index range.
func execIndexIfExists(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	v := ctx.View(n.ViewID)
	low, high := materialize(rt, ctx, n.SuperInstr)
	result := trueWord
	v.RangeScan(low, high, func(t domain.Tuple) bool {
		ctx.BindTuple(n.TupleID, t)
		if !truth(execute(rt, n.Condition, ctx, nil)) {
			return true
		}
		result = execute(rt, n.Nested, ctx, nil)
		return false
	})
	return result
}

// execParallelScan implements the four Parallel* scan/ifExists variants
// (spec.md §4.7): the relevant view or relation range is partitioned
// into ≈ threads*20 chunks and each chunk runs on its own cloned worker
// Context. A chunk's early break is local to that chunk; it never stops
// its siblings (spec.md §9).
func execParallelScan(rt *Runtime, n *node.Node, ctx *execctx.Context, viewsForNested []*node.Node) domain.Word {
	chunks := partitionForScan(rt, n, ctx)
	condOnly := n.Kind == ram.KParallelIfExists || n.Kind == ram.KParallelIndexIfExists

	parallel.Run(ctx, chunks, rt.Threads, func(worker *execctx.Context, chunk parallel.Chunk) {
		bindWorkerViews(worker, viewsForNested)
		defer worker.Views().DiscardAll()

		chunk(func(t domain.Tuple) bool {
			worker.BindTuple(n.TupleID, t)
			if condOnly {
				if !truth(execute(rt, n.Condition, worker, nil)) {
					return true
				}
				execute(rt, n.Nested, worker, nil)
				return false
			}
			execute(rt, n.Nested, worker, nil)
			return true
		})
	})
	return trueWord
}

func partitionForScan(rt *Runtime, n *node.Node, ctx *execctx.Context) []parallel.Chunk {
	count := parallel.PartitionCount(rt.Threads)
	var raw []func(fn func(domain.Tuple) bool)
	switch n.Kind {
	case ram.KParallelScan, ram.KParallelIfExists:
		raw = n.RelationSlot.Rel.Indices()[0].Partition(count)
	default:
		v := ctx.View(n.ViewID)
		low, high := materialize(rt, ctx, n.SuperInstr)
		raw = v.PartitionRange(low, high, count)
	}
	chunks := make([]parallel.Chunk, len(raw))
	for i, r := range raw {
		chunks[i] = parallel.Chunk(r)
	}
	return chunks
}

// bindWorkerViews materializes a fresh view.View for every entry of
// viewsForNested inside worker, so a Parallel* scan's nested subtree
// sees its own view instances rather than racing on the enclosing
// Context's (spec.md §4.7 "each worker acquires its own views").
func bindWorkerViews(worker *execctx.Context, nodes []*node.Node) {
	for _, vn := range nodes {
		order := index0(vn)
		worker.BindView(vn.ViewID, view.New(vn.RelationSlot.Rel, order, len(vn.SuperInstr.Types)))
	}
}

func index0(vn *node.Node) []int {
	if vn.SuperInstr != nil {
		return vn.SuperInstr.Order
	}
	arity := len(vn.RelationSlot.Rel.Types())
	order := make([]int, arity)
	for i := range order {
		order[i] = i
	}
	return order
}

package eval

import (
	"sync"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/parallel"
	"github.com/Pudrick/Souffle-mod/ram"
)

// aggState carries one aggregator's running accumulator through the
// Init/Accumulate/Finalize/Emit state machine (spec.md §4.5). count and
// sum are kept as plain Go numbers rather than domain words because
// MEAN's running (sum, count) pair has no single-word representation.
type aggState struct {
	word  domain.Word
	sum   float64
	count int64
	any   bool
}

func initAgg(rt *Runtime, n *node.Node, ctx *execctx.Context) aggState {
	switch n.Aggregate {
	case ram.AggMin:
		return aggState{word: domain.MaxSentinel(n.AggType)}
	case ram.AggMax:
		return aggState{word: domain.MinSentinel(n.AggType)}
	case ram.AggUser:
		if n.AggInit == nil {
			return aggState{}
		}
		return aggState{word: execute(rt, n.AggInit, ctx, nil)}
	default: // SUM, COUNT, MEAN
		return aggState{}
	}
}

// accumulate folds one accepted tuple's AggValue into st (spec.md
// §4.5). For AggUser, the running accumulator is rebound into ctx at
// AggTupleID before AggValue runs, so a KUserOperator inside AggValue
// can read the prior accumulator as {res}[0] the same way Emit's
// synthetic tuple is read (an authored generalization of the spec's own
// Emit-phase mechanism, applied during Accumulate as well).
func accumulate(rt *Runtime, n *node.Node, ctx *execctx.Context, st aggState) aggState {
	if n.Aggregate == ram.AggUser {
		ctx.BindTuple(n.AggTupleID, domain.Tuple{st.word})
	}
	v := execute(rt, n.AggValue, ctx, nil)
	st.any = true
	switch n.Aggregate {
	case ram.AggMin:
		if domain.Compare(v, st.word, n.AggType) < 0 {
			st.word = v
		}
	case ram.AggMax:
		if domain.Compare(v, st.word, n.AggType) > 0 {
			st.word = v
		}
	case ram.AggSum:
		st.word = addTyped(st.word, v, &node.Node{ValueType: n.AggType})
	case ram.AggCount:
		st.count++
	case ram.AggMean:
		st.sum += v.Float()
		st.count++
	case ram.AggUser:
		st.word = v
	}
	return st
}

// finalize converts an accumulated aggState to the emitted domain word,
// reporting whether Nested should run at all: MIN/MAX only run Nested
// if some tuple passed the filter; COUNT/SUM/MEAN always run Nested at
// their init value (0) when nothing passed, since each has a defined
// identity over the empty domain (spec.md §8's testable property).
func finalize(n *node.Node, st aggState) (domain.Word, bool) {
	switch n.Aggregate {
	case ram.AggMin, ram.AggMax:
		return st.word, st.any
	case ram.AggMean:
		if !st.any {
			return domain.FromFloat(0), true
		}
		return domain.FromFloat(st.sum / float64(st.count)), true
	case ram.AggCount:
		return domain.FromSigned(st.count), true
	case ram.AggUser:
		return st.word, true
	default: // SUM
		return st.word, true
	}
}

func runAggregateBody(rt *Runtime, n *node.Node, ctx *execctx.Context, scan func(fn func(domain.Tuple) bool)) domain.Word {
	st := initAgg(rt, n, ctx)
	scan(func(t domain.Tuple) bool {
		ctx.BindTuple(n.TupleID, t)
		if n.Condition != nil && !truth(execute(rt, n.Condition, ctx, nil)) {
			return true
		}
		st = accumulate(rt, n, ctx, st)
		return true
	})
	result, emit := finalize(n, st)
	if !emit {
		return trueWord
	}
	ctx.BindTuple(n.AggTupleID, domain.Tuple{result})
	return execute(rt, n.Nested, ctx, nil)
}

func execAggregate(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	return runAggregateBody(rt, n, ctx, n.RelationSlot.Rel.Scan)
}

func execIndexAggregate(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	v := ctx.View(n.ViewID)
	low, high := materialize(rt, ctx, n.SuperInstr)
	return runAggregateBody(rt, n, ctx, func(fn func(domain.Tuple) bool) {
		v.RangeScan(low, high, fn)
	})
}

// execParallelAggregate implements spec.md §4.7's partial-accumulate-
// then-merge parallel aggregation. MIN/MAX/SUM/COUNT/MEAN combine
// cleanly across chunks; AggUser has no defined commutative merge for an
// arbitrary accumulator, so it falls back to running as a single
// sequential chunk.
func execParallelAggregate(rt *Runtime, n *node.Node, ctx *execctx.Context, viewsForNested []*node.Node) domain.Word {
	if n.Aggregate == ram.AggUser {
		if n.Kind == ram.KParallelIndexAggregate {
			return execIndexAggregate(rt, n, ctx)
		}
		return execAggregate(rt, n, ctx)
	}

	chunks := partitionForAggregate(rt, n, ctx)
	return execParallelAggregateChunks(rt, n, ctx, chunks, viewsForNested)
}

func partitionForAggregate(rt *Runtime, n *node.Node, ctx *execctx.Context) []parallel.Chunk {
	count := parallel.PartitionCount(rt.Threads)
	var raw []func(fn func(domain.Tuple) bool)
	if n.Kind == ram.KParallelIndexAggregate {
		v := ctx.View(n.ViewID)
		low, high := materialize(rt, ctx, n.SuperInstr)
		raw = v.PartitionRange(low, high, count)
	} else {
		raw = n.RelationSlot.Rel.Indices()[0].Partition(count)
	}
	chunks := make([]parallel.Chunk, len(raw))
	for i, r := range raw {
		chunks[i] = parallel.Chunk(r)
	}
	return chunks
}

// execParallelAggregateChunks runs each chunk's Init/Accumulate on its
// own cloned worker Context, then merges every partial aggState
// sequentially before running Finalize/Emit once on the base Context.
func execParallelAggregateChunks(rt *Runtime, n *node.Node, ctx *execctx.Context, chunks []parallel.Chunk, viewsForNested []*node.Node) domain.Word {
	if len(chunks) == 0 {
		result, emit := finalize(n, initAgg(rt, n, ctx))
		if !emit {
			return trueWord
		}
		ctx.BindTuple(n.AggTupleID, domain.Tuple{result})
		return execute(rt, n.Nested, ctx, nil)
	}

	results := make([]aggState, len(chunks))
	var mu chunkMutex
	parallel.Run(ctx, chunks, rt.Threads, func(worker *execctx.Context, chunk parallel.Chunk) {
		st := initAgg(rt, n, worker)
		idx := mu.next(len(results))
		chunk(func(t domain.Tuple) bool {
			worker.BindTuple(n.TupleID, t)
			if n.Condition != nil && !truth(execute(rt, n.Condition, worker, nil)) {
				return true
			}
			st = accumulate(rt, n, worker, st)
			return true
		})
		results[idx] = st
	})

	merged := mergePartials(n, results)
	result, emit := finalize(n, merged)
	if !emit {
		return trueWord
	}
	if isParallelKind(n.Nested) {
		ctx.BindTuple(n.AggTupleID, domain.Tuple{result})
		return execute(rt, n.Nested, ctx, viewsForNested)
	}
	bound := bindViews(ctx, viewsForNested)
	defer discardViews(ctx, bound)
	ctx.BindTuple(n.AggTupleID, domain.Tuple{result})
	return execute(rt, n.Nested, ctx, nil)
}

func mergePartials(n *node.Node, parts []aggState) aggState {
	merged := aggState{}
	switch n.Aggregate {
	case ram.AggMin:
		merged.word = domain.MaxSentinel(n.AggType)
	case ram.AggMax:
		merged.word = domain.MinSentinel(n.AggType)
	}
	for _, p := range parts {
		if !p.any && n.Aggregate != ram.AggCount && n.Aggregate != ram.AggSum && n.Aggregate != ram.AggMean {
			continue
		}
		merged.any = merged.any || p.any
		switch n.Aggregate {
		case ram.AggMin:
			if p.any && domain.Compare(p.word, merged.word, n.AggType) < 0 {
				merged.word = p.word
			}
		case ram.AggMax:
			if p.any && domain.Compare(p.word, merged.word, n.AggType) > 0 {
				merged.word = p.word
			}
		case ram.AggSum:
			merged.word = addTyped(merged.word, p.word, &node.Node{ValueType: n.AggType})
		case ram.AggCount:
			merged.count += p.count
		case ram.AggMean:
			merged.sum += p.sum
			merged.count += p.count
		}
	}
	return merged
}

// chunkMutex hands out sequential result-slice indices to the
// concurrent worker invocations parallel.Run drives, one per chunk.
type chunkMutex struct {
	mu sync.Mutex
	n  int
}

func (c *chunkMutex) next(total int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.n
	c.n++
	return i
}

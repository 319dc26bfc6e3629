package eval

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/index"
	"github.com/Pudrick/Souffle-mod/node"
	"github.com/Pudrick/Souffle-mod/profile"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/regexcache"
	"github.com/Pudrick/Souffle-mod/relation"
	"github.com/Pudrick/Souffle-mod/symbol"
	"github.com/Pudrick/Souffle-mod/view"
)

func newTestRuntime(t *testing.T, threads int) *Runtime {
	t.Helper()
	sym := symbol.New()
	rec := record.New()
	fn := functor.New(sym, rec)
	return NewRuntime(nil, sym, rec, fn, regexcache.New(0), profile.NoOp(), threads, nil)
}

func newRel(name string, arity int, kind relation.Kind) relation.Relation {
	types := make([]domain.Type, arity)
	order := make(index.Order, arity)
	for i := range order {
		order[i] = i
	}
	return relation.New(nil, name, types, kind, relation.IndexCluster{Orders: []index.Order{order}})
}

func constNode(v int64) *node.Node {
	return &node.Node{Kind: ram.KConstant, Value: domain.FromSigned(v), ViewID: -1}
}

func unsignedNode(v uint64) *node.Node {
	return &node.Node{Kind: ram.KConstant, Value: domain.FromUnsigned(v), ValueType: domain.Unsigned, ViewID: -1}
}

func floatNode(v float64) *node.Node {
	return &node.Node{Kind: ram.KConstant, Value: domain.FromFloat(v), ValueType: domain.Float, ViewID: -1}
}

func tupleElem(tupleID, col int) *node.Node {
	return &node.Node{Kind: ram.KTupleElement, TupleID: tupleID, Column: col, ViewID: -1}
}

func binOp(op ram.IntrinsicOp, a, b *node.Node) *node.Node {
	return &node.Node{Kind: ram.KIntrinsicBinary, Op: op, Operands: []*node.Node{a, b}, ViewID: -1}
}

func TestExecuteConstantAndArithmetic(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	add := &node.Node{Kind: ram.KIntrinsicBinary, Op: ram.OpAdd, Operands: []*node.Node{constNode(2), constNode(3)}, ViewID: -1}
	require.Equal(t, int64(5), Execute(rt, add, ctx).Signed())
}

func TestExecuteFloatArithmeticDoesNotBitCastThroughSigned(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	require.InDelta(t, 2.0, Execute(rt, binOp(ram.OpSub, floatNode(3), floatNode(1)), ctx).Float(), 1e-9)
	require.InDelta(t, 4.5, Execute(rt, binOp(ram.OpMul, floatNode(3), floatNode(1.5)), ctx).Float(), 1e-9)
	require.InDelta(t, 3.5, Execute(rt, binOp(ram.OpDiv, floatNode(7), floatNode(2)), ctx).Float(), 1e-9)
	require.InDelta(t, 1.5, Execute(rt, binOp(ram.OpMod, floatNode(5.5), floatNode(2)), ctx).Float(), 1e-9)
}

func TestExecuteFloatDivisionByZeroYieldsIEEEInfInsteadOfPanicking(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	div := binOp(ram.OpDiv, floatNode(1), floatNode(0))
	var got domain.Word
	require.NotPanics(t, func() {
		got = Execute(rt, div, ctx)
	})
	require.True(t, math.IsInf(got.Float(), 1))
}

func TestExecuteIntegerDivisionByZeroIsFatal(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	require.Panics(t, func() {
		Execute(rt, binOp(ram.OpDiv, constNode(1), constNode(0)), ctx)
	})
	require.Panics(t, func() {
		Execute(rt, binOp(ram.OpDiv, unsignedNode(1), unsignedNode(0)), ctx)
	})
}

func TestExecuteUnsignedArithmeticUsesUnsignedDivision(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	maxUnsigned := ^uint64(0)
	div := binOp(ram.OpDiv, unsignedNode(maxUnsigned), unsignedNode(2))
	require.Equal(t, maxUnsigned/2, Execute(rt, div, ctx).Unsigned())

	sub := binOp(ram.OpSub, unsignedNode(1), unsignedNode(2))
	one, two := uint64(1), uint64(2)
	require.Equal(t, one-two, Execute(rt, sub, ctx).Unsigned(), "unsigned SUB wraps rather than going negative")
}

func TestExecuteShiftRightIsArithmeticForSignedAndLogicalForUnsigned(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	signedNeg8 := &node.Node{Kind: ram.KConstant, Value: domain.FromSigned(-8), ValueType: domain.Signed, ViewID: -1}
	signedShift := binOp(ram.OpBShiftR, signedNeg8, constNode(1))
	require.Equal(t, int64(-4), Execute(rt, signedShift, ctx).Signed(), "arithmetic shift sign-extends")

	unsignedNeg8 := &node.Node{Kind: ram.KConstant, Value: domain.FromSigned(-8), ValueType: domain.Unsigned, ViewID: -1}
	unsignedShift := binOp(ram.OpBShiftR, unsignedNeg8, constNode(1))
	negEight := int64(-8)
	want := uint64(negEight) >> 1
	require.Equal(t, want, Execute(rt, unsignedShift, ctx).Unsigned(), "logical shift does not sign-extend")
}

func TestExecEstimateJoinSizeFiltersByConstantMaskAndCountsDuplicates(t *testing.T) {
	rel := newRel("R", 2, relation.BTree)
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(5)})
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(5)})
	rel.Insert(domain.Tuple{domain.FromSigned(2), domain.FromSigned(5)})
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(7)}) // column 1 != 5, must be excluded entirely

	sym := symbol.New()
	rec := record.New()
	fn := functor.New(sym, rec)
	sink := profile.New()
	rt := NewRuntime(nil, sym, rec, fn, regexcache.New(0), sink, 1, nil)

	n := &node.Node{
		Kind:         ram.KEstimateJoinSize,
		RelationSlot: relation.NewSlot(rel),
		CountColumns: []int{0, 1},
		ConstantMask: []*node.Node{nil, constNode(5)},
		SuperInstr:   &node.SuperInstruction{Order: []int{0, 1}, Types: rel.Types()},
		ViewID:       -1,
	}

	ctx := execctx.New()
	require.Equal(t, trueWord, Execute(rt, n, ctx))

	events := sink.Events()
	require.Len(t, events, 1)
	require.Equal(t, "@non-recursive-estimate-join-size;R", events[0].Tag)
	// The relation is a set, so the repeated (1,5) insert adds nothing: 2
	// tuples match column 1 == 5, each in its own group of the free column
	// (0), so duplicates is 0 and total-duplicates == 2.
	require.Equal(t, int64(2), events[0].Value)
}

func TestExecuteVariableLookup(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	require.Panics(t, func() {
		Execute(rt, &node.Node{Kind: ram.KVariable, VarName: "x", ViewID: -1}, ctx)
	}, "reading an unassigned variable is a structural error")

	ctx.SetVar("x", domain.FromSigned(7))
	got := Execute(rt, &node.Node{Kind: ram.KVariable, VarName: "x", ViewID: -1}, ctx)
	require.Equal(t, int64(7), got.Signed())
}

func TestExecuteConjunctionShortCircuit(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	poison := &node.Node{Kind: ram.KIntrinsicBinary, Op: ram.OpDiv, Operands: []*node.Node{constNode(1), constNode(0)}, ViewID: -1}
	conj := &node.Node{Kind: ram.KConjunction, Conjuncts: []*node.Node{{Kind: ram.KFalse, ViewID: -1}, poison}, ViewID: -1}

	require.NotPanics(t, func() {
		require.Equal(t, falseWord, Execute(rt, conj, ctx))
	})
}

func TestExecuteScanInsertsIntoTarget(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	src := newRel("src", 2, relation.BTree)
	src.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(10)})
	src.Insert(domain.Tuple{domain.FromSigned(2), domain.FromSigned(20)})
	dst := newRel("dst", 2, relation.BTree)

	insertPlusOne := &node.Node{
		Kind:         ram.KInsert,
		RelationSlot: relation.NewSlot(dst),
		SuperInstr: &node.SuperInstruction{
			Order:      index.Order{0, 1},
			Types:      []domain.Type{domain.Signed, domain.Signed},
			ConstFirst: domain.Tuple{0, 0},
			ExprFirst: []node.ExprCopy{
				{Column: 0, Node: tupleElem(0, 0)},
				{Column: 1, Node: &node.Node{Kind: ram.KIntrinsicBinary, Op: ram.OpAdd, Operands: []*node.Node{tupleElem(0, 1), constNode(1)}, ViewID: -1}},
			},
			Total: true,
		},
		ViewID: -1,
	}
	scan := &node.Node{Kind: ram.KScan, RelationSlot: relation.NewSlot(src), TupleID: 0, Nested: insertPlusOne, ViewID: -1}

	Execute(rt, scan, ctx)

	require.True(t, dst.Contains(domain.Tuple{domain.FromSigned(1), domain.FromSigned(11)}))
	require.True(t, dst.Contains(domain.Tuple{domain.FromSigned(2), domain.FromSigned(21)}))
	require.Equal(t, 2, dst.Size())
}

func aggregateNode(rel relation.Relation, agg ram.AggOp, nested *node.Node) *node.Node {
	return &node.Node{
		Kind:         ram.KAggregate,
		RelationSlot: relation.NewSlot(rel),
		TupleID:      0,
		Condition:    &node.Node{Kind: ram.KTrue, ViewID: -1},
		Aggregate:    agg,
		AggType:      domain.Signed,
		AggValue:     tupleElem(0, 0),
		AggTupleID:   1,
		Nested:       nested,
		ViewID:       -1,
	}
}

func TestExecuteAggregateMinOverEmptyProducesNoTuple(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	empty := newRel("empty", 1, relation.BTree)
	ran := false
	n := aggregateNode(empty, ram.AggMin, &node.Node{Kind: ram.KAssign, AssignVar: "ran", AssignExpr: constNode(1), ViewID: -1})

	result := Execute(rt, n, ctx)
	require.Equal(t, trueWord, result)
	_, bound := ctx.Var("ran")
	require.False(t, bound, "MIN over an empty relation must not run Nested")
	require.False(t, ran)
}

func TestExecuteAggregateMinAndCount(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	rel := newRel("vals", 1, relation.BTree)
	rel.Insert(domain.Tuple{domain.FromSigned(30)})
	rel.Insert(domain.Tuple{domain.FromSigned(10)})
	rel.Insert(domain.Tuple{domain.FromSigned(20)})

	capture := &node.Node{Kind: ram.KAssign, AssignVar: "min", AssignExpr: tupleElem(1, 0), ViewID: -1}
	Execute(rt, aggregateNode(rel, ram.AggMin, capture), ctx)
	got, ok := ctx.Var("min")
	require.True(t, ok)
	require.Equal(t, int64(10), got.Signed())

	captureCount := &node.Node{Kind: ram.KAssign, AssignVar: "count", AssignExpr: tupleElem(1, 0), ViewID: -1}
	Execute(rt, aggregateNode(rel, ram.AggCount, captureCount), ctx)
	got, ok = ctx.Var("count")
	require.True(t, ok)
	require.Equal(t, int64(3), got.Signed())
}

func TestExecuteProvenanceExistenceCheck(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	rel := newRel("prov", 3, relation.Provenance)
	order := index.Order{0, 1, 2}
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(0), domain.FromSigned(5)})

	n := &node.Node{
		Kind:         ram.KProvenanceExistenceCheck,
		RelationSlot: relation.NewSlot(rel),
		ViewID:       0,
		SuperInstr: &node.SuperInstruction{
			Order:       order,
			Types:       []domain.Type{domain.Signed, domain.Signed, domain.Signed},
			ConstFirst:  domain.Tuple{domain.FromSigned(1), 0, 0},
			ConstSecond: domain.Tuple{domain.FromSigned(1), 0, 0},
			Total:       false,
		},
		ProvenanceExpr: constNode(10),
	}
	ctx.BindView(0, view.New(rel, order, 3))

	require.Equal(t, trueWord, Execute(rt, n, ctx), "level 10 dominates the stored level 5")

	n.ProvenanceExpr = constNode(1)
	require.Equal(t, falseWord, Execute(rt, n, ctx), "level 1 does not dominate the stored level 5")

	rt.Metrics.Emit(rt.Profile)
}

func TestExecuteExistenceCheckIncrementsRelationReadCounter(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	fn := functor.New(sym, rec)
	sink := profile.New()
	rt := NewRuntime(nil, sym, rec, fn, regexcache.New(0), sink, 1, nil)
	ctx := execctx.New()

	rel := newRel("edges", 2, relation.BTree)
	rel.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)})
	order := index.Order{0, 1}

	n := &node.Node{
		Kind:         ram.KExistenceCheck,
		RelationSlot: relation.NewSlot(rel),
		ViewID:       0,
		SuperInstr: &node.SuperInstruction{
			Order:      order,
			Types:      []domain.Type{domain.Signed, domain.Signed},
			ConstFirst: domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)},
			Total:      true,
		},
	}
	ctx.BindView(0, view.New(rel, order, 2))

	require.Equal(t, trueWord, Execute(rt, n, ctx))
	require.Equal(t, trueWord, Execute(rt, n, ctx))

	rt.Metrics.Emit(sink)
	var reads int64
	for _, e := range sink.Events() {
		if e.Tag == "@relation-reads;edges" {
			reads = e.Value
		}
	}
	require.Equal(t, int64(2), reads)
}

func TestExecuteQueryIncrementsRuleFrequency(t *testing.T) {
	sym := symbol.New()
	rec := record.New()
	fn := functor.New(sym, rec)
	sink := profile.New()
	rt := NewRuntime(nil, sym, rec, fn, regexcache.New(0), sink, 1, nil)
	ctx := execctx.New()

	q := &node.Node{
		Kind:        ram.KQuery,
		ProfileText: "my.rule",
		Nested:      &node.Node{Kind: ram.KTrue, ViewID: -1},
		ViewID:      -1,
	}

	Execute(rt, q, ctx)
	Execute(rt, q, ctx)

	rt.Metrics.Emit(sink)
	var freq int64
	for _, e := range sink.Events() {
		if e.Tag == "@frequency-rule;my.rule" {
			freq = e.Value
		}
	}
	require.Equal(t, int64(2), freq)
}

func TestExecuteSwapPreservesSlotPointers(t *testing.T) {
	relA := newRel("a", 1, relation.BTree)
	relA.Insert(domain.Tuple{domain.FromSigned(1)})
	relB := newRel("b", 1, relation.BTree)
	relB.Insert(domain.Tuple{domain.FromSigned(2)})

	slotA := relation.NewSlot(relA)
	slotB := relation.NewSlot(relB)

	rt := newTestRuntime(t, 1)
	ctx := execctx.New()
	swap := &node.Node{Kind: ram.KSwap, RelationSlot: slotA, SecondRelationSlot: slotB, ViewID: -1}
	Execute(rt, swap, ctx)

	require.True(t, slotA.Rel.Contains(domain.Tuple{domain.FromSigned(2)}))
	require.True(t, slotB.Rel.Contains(domain.Tuple{domain.FromSigned(1)}))
}

func TestExecuteLoopStopsOnExit(t *testing.T) {
	rt := newTestRuntime(t, 1)
	ctx := execctx.New()

	const limit = 5
	loopBody := &node.Node{Kind: ram.KSequence, ViewID: -1, Sequence: []*node.Node{
		{Kind: ram.KAssign, ViewID: -1, AssignVar: "seen", AssignExpr: &node.Node{Kind: ram.KUserOperator, ViewID: -1, Stateful: true}},
		{Kind: ram.KExit, ViewID: -1, Condition: &node.Node{
			Kind: ram.KConstraint, ViewID: -1, Constraint: ram.CGe,
			Operand1:    &node.Node{Kind: ram.KAutoIncrement, ViewID: -1},
			Operand2:    constNode(limit),
			CompareType: domain.Signed,
		}},
	}}
	loop := &node.Node{Kind: ram.KLoop, Nested: loopBody, ViewID: -1}

	rt.Functors.RegisterStateful(functor.Descriptor{Name: ""}, func(_ *symbol.Table, _ *record.Table, _ []domain.Word) domain.Word {
		return domain.FromSigned(int64(rt.IterationCounter()))
	})

	Execute(rt, loop, ctx)

	seen, ok := ctx.Var("seen")
	require.True(t, ok)
	require.Equal(t, int64(limit), seen.Signed(), "Exit fires on the iteration whose counter reaches limit, after Nested's Assign has observed it")
	require.Equal(t, 0, rt.IterationCounter(), "the counter resets to 0 once the loop terminates")
}

func TestExecuteCallSubroutineReturn(t *testing.T) {
	rt := newTestRuntime(t, 1)
	rt.Subroutines = map[string]*node.Node{
		"answer": {Kind: ram.KSubroutineReturn, ViewID: -1, Operands: []*node.Node{constNode(42)}},
	}
	ctx := execctx.New()
	call := &node.Node{Kind: ram.KCall, SubroutineName: "answer", ViewID: -1}

	Execute(rt, call, ctx)
	require.Equal(t, []domain.Word{domain.FromSigned(42)}, ctx.Returns())
}

func TestExecuteParallelScanVisitsEveryTupleExactlyOnce(t *testing.T) {
	rt := newTestRuntime(t, 4)
	ctx := execctx.New()

	rel := newRel("many", 1, relation.BTree)
	const total = 200
	for i := int64(0); i < total; i++ {
		rel.Insert(domain.Tuple{domain.FromSigned(i)})
	}

	var mu sync.Mutex
	seen := make(map[int64]bool)
	rt.Functors.RegisterStateful(functor.Descriptor{Name: "record"}, func(_ *symbol.Table, _ *record.Table, args []domain.Word) domain.Word {
		mu.Lock()
		seen[args[0].Signed()] = true
		mu.Unlock()
		return domain.Nil
	})

	recordCall := &node.Node{Kind: ram.KUserOperator, FunctorName: "record", Stateful: true, ViewID: -1, Operands: []*node.Node{tupleElem(0, 0)}}
	visit := &node.Node{Kind: ram.KAssign, AssignVar: "_", AssignExpr: recordCall, ViewID: -1}
	scan := &node.Node{Kind: ram.KParallelScan, RelationSlot: relation.NewSlot(rel), TupleID: 0, Nested: visit, ViewID: -1}

	Execute(rt, scan, ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, total)
	for i := int64(0); i < total; i++ {
		require.True(t, seen[i], "tuple %d was never visited", i)
	}
}

package node

import (
	"fmt"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/relation"
)

// Generator walks a ram.Node tree once and produces the executable
// Node tree (spec.md §4.1): it allocates child nodes, resolves relation
// references to direct *relation.Slot pointers, allocates view ids for
// every pattern-taking operation, precomputes super-instructions
// (spec.md §4.3), and resolves user-defined functor names against a
// functor.Bridge built ahead of time by the Engine.
type Generator struct {
	relations map[string]*relation.Slot
	functors  *functor.Bridge
	nextView  int
}

// NewGenerator returns a Generator resolving relation names against
// relations and functor names against functors.
func NewGenerator(relations map[string]*relation.Slot, functors *functor.Bridge) *Generator {
	return &Generator{relations: relations, functors: functors}
}

func (g *Generator) allocView() int {
	id := g.nextView
	g.nextView++
	return id
}

// joinSizeOrder is the column order EstimateJoinSize's view walks: the
// grouping columns first, so tuples sharing a key land adjacent under
// the view's index, then every remaining column in ascending order.
func joinSizeOrder(countColumns []int, arity int) Order {
	seen := make(map[int]bool, len(countColumns))
	order := make(Order, 0, arity)
	for _, c := range countColumns {
		order = append(order, c)
		seen[c] = true
	}
	for c := 0; c < arity; c++ {
		if !seen[c] {
			order = append(order, c)
		}
	}
	return order
}

func (g *Generator) slot(name string) *relation.Slot {
	s, ok := g.relations[name]
	if !ok {
		panic(fmt.Sprintf("node: unresolved relation %q", name))
	}
	return s
}

func (g *Generator) types(name string) []domain.Type {
	return g.slot(name).Rel.Types()
}

func new_(kind ram.Kind) *Node {
	return &Node{Kind: kind, ViewID: -1}
}

func (g *Generator) list(ns []*ram.Node) []*Node {
	if ns == nil {
		return nil
	}
	out := make([]*Node, len(ns))
	for i, c := range ns {
		out[i] = g.Generate(c)
	}
	return out
}

// classify turns one pattern-column expression into the super-
// instruction bucket it belongs to (spec.md §4.3).
func (g *Generator) classify(col int, elem *ram.Node, dst *domain.Word, unbound domain.Word) (tc *TupleCopy, ec *ExprCopy, total bool) {
	if elem == nil {
		*dst = unbound
		return nil, nil, false
	}
	switch elem.Kind {
	case ram.KConstant:
		*dst = elem.Value
		return nil, nil, true
	case ram.KTupleElement:
		return &TupleCopy{Column: col, TupleID: elem.TupleID, Element: elem.Column}, nil, true
	default:
		return nil, &ExprCopy{Column: col, Node: g.Generate(elem)}, true
	}
}

// compilePattern builds a SuperInstruction from a ram.Pattern against a
// relation's column types and the index order the pattern is expressed
// against. If pattern.Second is nil, the pattern is symmetric — the
// common equal-bounds case (spec.md §4.3).
func (g *Generator) compilePattern(pattern *ram.Pattern, order []int, types []domain.Type) *SuperInstruction {
	arity := len(types)
	si := &SuperInstruction{
		Order:       append([]int(nil), order...),
		Types:       types,
		ConstFirst:  make(domain.Tuple, arity),
		ConstSecond: make(domain.Tuple, arity),
		Total:       true,
	}
	first := pattern.First
	second := pattern.Second
	if second == nil {
		second = first
	}
	for col := 0; col < arity; col++ {
		var elemFirst, elemSecond *ram.Node
		if col < len(first) {
			elemFirst = first[col]
		}
		if col < len(second) {
			elemSecond = second[col]
		}
		tc, ec, total := g.classify(col, elemFirst, &si.ConstFirst[col], domain.MinSentinel(types[col]))
		if !total {
			si.Total = false
		}
		if tc != nil {
			si.TupleFirst = append(si.TupleFirst, *tc)
		}
		if ec != nil {
			si.ExprFirst = append(si.ExprFirst, *ec)
		}
		tc2, ec2, total2 := g.classify(col, elemSecond, &si.ConstSecond[col], domain.MaxSentinel(types[col]))
		if !total2 {
			si.Total = false
		}
		if tc2 != nil {
			si.TupleSecond = append(si.TupleSecond, *tc2)
		}
		if ec2 != nil {
			si.ExprSecond = append(si.ExprSecond, *ec2)
		}
	}
	return si
}

// Generate converts one ram.Node (and everything it reaches) into an
// executable Node.
func (g *Generator) Generate(n *ram.Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ram.KConstant:
		out := new_(n.Kind)
		out.Value, out.ValueType = n.Value, n.ValueType
		return out

	case ram.KVariable:
		out := new_(n.Kind)
		out.VarName = n.VarName
		return out

	case ram.KTupleElement:
		out := new_(n.Kind)
		out.TupleID, out.Column, out.ValueType = n.TupleID, n.Column, n.ValueType
		return out

	case ram.KAutoIncrement:
		return new_(n.Kind)

	case ram.KPackRecord:
		out := new_(n.Kind)
		out.Elems, out.RecordArity = g.list(n.Elems), n.RecordArity
		return out

	case ram.KIntrinsicUnary, ram.KIntrinsicBinary:
		out := new_(n.Kind)
		out.Op, out.Operands = n.Op, g.list(n.Operands)
		return out

	case ram.KNestedIntrinsic:
		out := new_(n.Kind)
		out.Op = n.Op
		out.Operands = g.list(n.Operands)
		out.Step = g.Generate(n.Step)
		out.ValueType = n.ValueType
		out.TupleID = n.TupleID
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KUserOperator:
		desc, ok := g.functors.Descriptor(n.FunctorName)
		if !ok {
			panic(fmt.Sprintf("node: unresolved user-defined functor %q", n.FunctorName))
		}
		out := new_(n.Kind)
		out.FunctorName, out.Functor, out.Stateful = n.FunctorName, desc, n.Stateful
		out.Operands = g.list(n.Operands)
		return out

	case ram.KTrue, ram.KFalse:
		return new_(n.Kind)

	case ram.KConjunction:
		out := new_(n.Kind)
		out.Conjuncts = g.list(n.Conjuncts)
		return out

	case ram.KNegation:
		out := new_(n.Kind)
		out.Negated = g.Generate(n.Negated)
		return out

	case ram.KConstraint:
		out := new_(n.Kind)
		out.Operand1, out.Operand2 = g.Generate(n.Operand1), g.Generate(n.Operand2)
		out.Constraint, out.CompareType = n.Constraint, n.CompareType
		return out

	case ram.KScan, ram.KParallelScan:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KIndexScan, ram.KParallelIndexScan:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.ViewID = g.allocView()
		out.SuperInstr = g.compilePattern(n.SearchPattern, n.ViewOrder, g.types(n.RelationName))
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KIfExists, ram.KParallelIfExists:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.Condition = g.Generate(n.Condition)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KIndexIfExists, ram.KParallelIndexIfExists:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.ViewID = g.allocView()
		out.SuperInstr = g.compilePattern(n.SearchPattern, n.ViewOrder, g.types(n.RelationName))
		out.Condition = g.Generate(n.Condition)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KAggregate, ram.KParallelAggregate:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.Aggregate, out.AggType = n.Aggregate, n.AggType
		out.AggInit = g.Generate(n.AggInit)
		out.AggValue = g.Generate(n.AggValue)
		out.AggTupleID = n.AggTupleID
		out.Condition = g.Generate(n.Condition)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KIndexAggregate, ram.KParallelIndexAggregate:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.TupleID = n.TupleID
		out.ViewID = g.allocView()
		out.SuperInstr = g.compilePattern(n.SearchPattern, n.ViewOrder, g.types(n.RelationName))
		out.Aggregate, out.AggType = n.Aggregate, n.AggType
		out.AggInit = g.Generate(n.AggInit)
		out.AggValue = g.Generate(n.AggValue)
		out.AggTupleID = n.AggTupleID
		out.Condition = g.Generate(n.Condition)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KUnpackRecord:
		out := new_(n.Kind)
		out.RecordExpr = g.Generate(n.RecordExpr)
		out.RecordArity = n.RecordArity
		out.TupleID = n.TupleID
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KFilter:
		out := new_(n.Kind)
		out.Condition = g.Generate(n.Condition)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KBreak:
		out := new_(n.Kind)
		out.Condition = g.Generate(n.Condition)
		return out

	case ram.KInsert, ram.KGuardedInsert:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.SuperInstr = g.compilePattern(n.InsertPattern, n.ViewOrder, g.types(n.RelationName))
		out.Guard = g.Generate(n.Guard)
		return out

	case ram.KErase:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.SuperInstr = g.compilePattern(n.InsertPattern, n.ViewOrder, g.types(n.RelationName))
		return out

	case ram.KExistenceCheck:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.ViewID = g.allocView()
		out.SuperInstr = g.compilePattern(n.SearchPattern, n.ViewOrder, g.types(n.RelationName))
		return out

	case ram.KProvenanceExistenceCheck:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.ViewID = g.allocView()
		out.SuperInstr = g.compilePattern(n.SearchPattern, n.ViewOrder, g.types(n.RelationName))
		out.ProvenanceExpr = g.Generate(n.ProvenanceExpr)
		return out

	case ram.KSubroutineReturn:
		out := new_(n.Kind)
		out.Operands = g.list(n.Operands)
		return out

	case ram.KSequence, ram.KParallel:
		out := new_(n.Kind)
		out.Sequence = g.list(n.Sequence)
		return out

	case ram.KLoop:
		out := new_(n.Kind)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KExit:
		out := new_(n.Kind)
		out.Condition = g.Generate(n.Condition)
		return out

	case ram.KCall:
		out := new_(n.Kind)
		out.SubroutineName = n.SubroutineName
		out.CallArgs = g.list(n.CallArgs)
		return out

	case ram.KQuery:
		out := new_(n.Kind)
		out.ViewFreeFilter = g.list(n.ViewFreeFilter)
		out.FilterOps = g.list(n.FilterOps)
		out.Nested = g.Generate(n.Nested)
		out.QueryParallel = n.QueryParallel
		out.ProfileText = n.ProfileText
		for _, f := range out.FilterOps {
			out.ViewsForFilter = append(out.ViewsForFilter, CollectViewNodes(f)...)
		}
		out.ViewsForNested = CollectViewNodes(out.Nested)
		return out

	case ram.KClear:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		return out

	case ram.KSwap:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.SecondRelationSlot = g.slot(n.SecondRelName)
		return out

	case ram.KMergeExtend:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.SecondRelationSlot = g.slot(n.SecondRelName)
		return out

	case ram.KIO:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.IO = n.IO
		return out

	case ram.KLogTimer, ram.KDebugInfo:
		out := new_(n.Kind)
		out.LogMessage = n.LogMessage
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KLogRelationTimer:
		out := new_(n.Kind)
		out.LogMessage = n.LogMessage
		out.RelationSlot = g.slot(n.LogRelation)
		out.Nested = g.Generate(n.Nested)
		return out

	case ram.KLogSize:
		out := new_(n.Kind)
		out.LogMessage = n.LogMessage
		out.RelationSlot = g.slot(n.LogRelation)
		return out

	case ram.KAssign:
		out := new_(n.Kind)
		out.AssignVar = n.AssignVar
		out.AssignExpr = g.Generate(n.AssignExpr)
		return out

	case ram.KEstimateJoinSize:
		out := new_(n.Kind)
		out.RelationSlot = g.slot(n.RelationName)
		out.CountColumns = n.CountColumns
		out.ConstantMask = g.list(n.ConstantMask)
		out.Recursive = n.Recursive
		out.ViewID = g.allocView()
		types := g.types(n.RelationName)
		out.SuperInstr = &SuperInstruction{Order: joinSizeOrder(n.CountColumns, len(types)), Types: types}
		return out

	default:
		panic(fmt.Sprintf("node: unreachable ram kind %v", n.Kind))
	}
}

// GenerateSubroutines converts a name -> ram.Node map of subroutine
// trees, sharing this Generator's relation/functor/view-id state so
// view ids stay unique across the whole program (spec.md §3 "the named
// subroutine trees").
func (g *Generator) GenerateSubroutines(subs map[string]*ram.Node) map[string]*Node {
	out := make(map[string]*Node, len(subs))
	for name, tree := range subs {
		out[name] = g.Generate(tree)
	}
	return out
}

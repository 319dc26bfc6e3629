// Package node implements the executable shadow tree that mirrors a
// ram.Node tree with every relation reference, view id and
// super-instruction pre-resolved (spec.md §4.1). Nodes are constructed
// once by Generator and are immutable thereafter; they own no heap
// state that outlives the Engine that built them.
package node

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/relation"
)

// TupleCopy is one entry of a super-instruction's tupleFirst/tupleSecond
// track: copy the value at (TupleID, Element) in the enclosing Context
// into Column of the bound tuple (spec.md §4.3).
type TupleCopy struct {
	Column  int
	TupleID int
	Element int
}

// ExprCopy is one entry of a super-instruction's exprFirst/exprSecond
// track: evaluate Node and place the result at Column (spec.md §4.3).
type ExprCopy struct {
	Column int
	Node   *Node
}

// SuperInstruction is the pre-computed search-bound pattern for one
// pattern-taking operation (spec.md §4.3).
type SuperInstruction struct {
	Order Order
	Types []domain.Type

	ConstFirst, ConstSecond domain.Tuple
	TupleFirst, TupleSecond []TupleCopy
	ExprFirst, ExprSecond   []ExprCopy

	// Total is true when every column of the pattern is fully
	// determined (constant or context copy, no unbound sentinel) —
	// spec.md §4.4 "if the pattern is total, build one tuple".
	Total bool
}

// Order is a column permutation; re-exported here (rather than aliased
// to index.Order) so that callers of this package do not need to import
// index just to build a SuperInstruction by hand in tests.
type Order = []int

// Node is one executable shadow node.
type Node struct {
	Kind ram.Kind

	// Expressions
	Value       domain.Word
	ValueType   domain.Type
	VarName     string
	TupleID     int
	Column      int
	Elems       []*Node
	RecordArity int
	Op          ram.IntrinsicOp
	Operands    []*Node
	Step        *Node
	Functor     functor.Descriptor
	FunctorName string
	Stateful    bool

	// Predicates
	Operand1, Operand2 *Node
	Constraint         ram.ConstraintOp
	CompareType        domain.Type
	Conjuncts          []*Node
	Negated            *Node

	// Relation-bearing operations
	RelationSlot       *relation.Slot
	SecondRelationSlot *relation.Slot
	SuperInstr         *SuperInstruction
	ViewID             int // -1 if this node creates/uses no view
	Guard              *Node
	ProvenanceExpr     *Node

	Nested    *Node
	Condition *Node

	Aggregate  ram.AggOp
	AggType    domain.Type
	AggInit    *Node
	AggValue   *Node
	AggTupleID int

	RecordExpr *Node

	ViewFreeFilter []*Node
	FilterOps      []*Node
	// ViewsForFilter and ViewsForNested are the view-owning descendant
	// nodes (ViewID >= 0) reachable from FilterOps and Nested
	// respectively, in the order node.Generator discovered them
	// (spec.md §4.8): the Query executor materializes one view.View per
	// entry before running that phase.
	ViewsForFilter []*Node
	ViewsForNested []*Node
	QueryParallel  bool
	ProfileText    string

	Sequence       []*Node
	SubroutineName string
	CallArgs       []*Node

	IO          *ram.IODirective
	LogMessage  string
	AssignVar   string
	AssignExpr  *Node

	CountColumns []int
	ConstantMask []*Node
	Recursive    bool
}

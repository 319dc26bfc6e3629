// Package ram defines the RAM intermediate representation this
// evaluator consumes. Construction and optimization of RAM programs is
// out of scope (spec.md §1): this package only declares the tree shape
// node.Generator walks to build the executable node.Node tree. Fields
// are grouped by Kind and named explicitly rather than addressed
// positionally, since spec.md places no format requirement on the
// input beyond "a nested structure of relational operations,
// expressions, and control constructs".
package ram

import (
	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/relation"
)

// Kind tags every RAM node so both this package and node.Generator can
// dispatch on it with a single switch (spec.md §9).
type Kind int

const (
	// Expressions
	KConstant Kind = iota
	KVariable
	KTupleElement
	KAutoIncrement
	KPackRecord
	KIntrinsicUnary
	KIntrinsicBinary
	KUserOperator
	KNestedIntrinsic // RANGE/URANGE/FRANGE

	// Predicates
	KTrue
	KFalse
	KConjunction
	KNegation
	KConstraint

	// Operations
	KScan
	KIndexScan
	KIfExists
	KIndexIfExists
	KParallelScan
	KParallelIndexScan
	KParallelIfExists
	KParallelIndexIfExists
	KAggregate
	KIndexAggregate
	KParallelAggregate
	KParallelIndexAggregate
	KUnpackRecord
	KFilter
	KBreak
	KInsert
	KGuardedInsert
	KErase
	KSubroutineReturn
	KExistenceCheck
	KProvenanceExistenceCheck

	// Control
	KSequence
	KParallel
	KLoop
	KExit
	KCall
	KQuery
	KClear
	KSwap
	KMergeExtend
	KIO
	KLogTimer
	KLogRelationTimer
	KLogSize
	KDebugInfo
	KAssign
	KEstimateJoinSize
)

// IntrinsicOp names a unary/binary/n-ary intrinsic operator (spec.md
// §4.2.1).
type IntrinsicOp string

const (
	OpNeg     IntrinsicOp = "NEG"
	OpBNot    IntrinsicOp = "BNOT"
	OpLNot    IntrinsicOp = "LNOT"
	OpI2U     IntrinsicOp = "I2U"
	OpI2F     IntrinsicOp = "I2F"
	OpU2I     IntrinsicOp = "U2I"
	OpU2F     IntrinsicOp = "U2F"
	OpF2I     IntrinsicOp = "F2I"
	OpF2U     IntrinsicOp = "F2U"
	OpI2S     IntrinsicOp = "I2S"
	OpS2I     IntrinsicOp = "S2I"
	OpU2S     IntrinsicOp = "U2S"
	OpS2U     IntrinsicOp = "S2U"
	OpF2S     IntrinsicOp = "F2S"
	OpS2F     IntrinsicOp = "S2F"
	OpAdd     IntrinsicOp = "ADD"
	OpSub     IntrinsicOp = "SUB"
	OpMul     IntrinsicOp = "MUL"
	OpDiv     IntrinsicOp = "DIV"
	OpMod     IntrinsicOp = "MOD"
	OpExp     IntrinsicOp = "EXP"
	OpBAnd    IntrinsicOp = "BAND"
	OpBOr     IntrinsicOp = "BOR"
	OpBXor    IntrinsicOp = "BXOR"
	OpBShiftL IntrinsicOp = "BSHIFT_L"
	OpBShiftR IntrinsicOp = "BSHIFT_R"
	OpLAnd    IntrinsicOp = "LAND"
	OpLOr     IntrinsicOp = "LOR"
	OpLXor    IntrinsicOp = "LXOR"
	OpMin     IntrinsicOp = "MIN"
	OpMax     IntrinsicOp = "MAX"
	OpCat     IntrinsicOp = "CAT"
	OpSubstr  IntrinsicOp = "SUBSTR"
	OpRange   IntrinsicOp = "RANGE"
	OpURange  IntrinsicOp = "URANGE"
	OpFRange  IntrinsicOp = "FRANGE"
)

// ConstraintOp names a Constraint comparator/regex/substring test
// (spec.md §4.2.4).
type ConstraintOp string

const (
	CEq         ConstraintOp = "EQ"
	CNe         ConstraintOp = "NE"
	CLt         ConstraintOp = "LT"
	CLe         ConstraintOp = "LE"
	CGt         ConstraintOp = "GT"
	CGe         ConstraintOp = "GE"
	CMatch      ConstraintOp = "MATCH"
	CNotMatch   ConstraintOp = "NOT_MATCH"
	CContains   ConstraintOp = "CONTAINS"
	CNotContain ConstraintOp = "NOT_CONTAINS"
)

// AggOp names an aggregator operator (spec.md §4.5).
type AggOp string

const (
	AggMin   AggOp = "MIN"
	AggMax   AggOp = "MAX"
	AggSum   AggOp = "SUM"
	AggCount AggOp = "COUNT"
	AggMean  AggOp = "MEAN"
	AggUser  AggOp = "USER"
)

// IODirective is the opaque key-value set spec.md §6 says the core
// passes through to the Reader/Writer collaborator without interpreting.
type IODirective struct {
	Operation string // "input" | "output" | "printsize"
	Params    map[string]string
}

// Pattern is a super-instruction's uncompiled search-bound description
// (spec.md §4.3): one child expression per column, or nil for an
// unbounded column (which node.Generator resolves to the column's typed
// sentinel).
type Pattern struct {
	First  []*Node
	Second []*Node
}

// Node is one RAM tree node. Only the fields relevant to Kind are
// populated.
type Node struct {
	Kind Kind

	// --- Expressions ---
	Value       domain.Word // KConstant
	ValueType   domain.Type // KConstant / KTupleElement / RANGE units
	VarName     string      // KVariable
	TupleID     int         // KTupleElement source, or the id an op binds
	Column      int         // KTupleElement
	Elems       []*Node     // KPackRecord
	RecordArity int         // KPackRecord / KUnpackRecord
	Op          IntrinsicOp // KIntrinsicUnary/Binary/KNestedIntrinsic
	Operands    []*Node     // intrinsic operator operands (unary:1, binary:2, n-ary min/max/cat: N)
	Step        *Node       // KNestedIntrinsic optional step
	FunctorName string      // KUserOperator
	Stateful    bool        // KUserOperator

	// --- Predicates ---
	Operand1, Operand2 *Node        // KConstraint
	Constraint         ConstraintOp // KConstraint
	CompareType        domain.Type  // KConstraint
	Conjuncts          []*Node      // KConjunction
	Negated            *Node        // KNegation

	// --- Relation-bearing operations ---
	RelationName  string   // primary relation
	SecondRelName string   // KSwap's second relation, KMergeExtend's target
	SearchPattern *Pattern // KIndexScan/KIndexIfExists/KIndexAggregate/.../KExistenceCheck
	ViewOrder     []int    // column order the pattern/view is expressed against
	Guard         *Node    // KGuardedInsert
	InsertPattern *Pattern // KInsert/KGuardedInsert/KErase: full-tuple pattern (Pattern.First only)
	ProvenanceExpr *Node   // KProvenanceExistenceCheck: level-bound expression

	// --- Nested structure shared by Scan/IfExists/Aggregate/UnpackRecord/Query ---
	Nested    *Node // the nested operation, if any
	Condition *Node // IfExists per-tuple condition / Aggregate per-site filter

	// --- Aggregate ---
	Aggregate  AggOp
	AggType    domain.Type // domain type AggValue produces, for typed compare/arithmetic
	AggInit    *Node       // user-defined aggregator init expression
	AggValue   *Node       // expression producing the value accumulated
	AggTupleID int         // tuple id the {res} singleton is bound to

	// --- UnpackRecord ---
	RecordExpr *Node // expression evaluating to the record reference

	// --- Query staging (spec.md §4.8) ---
	ViewFreeFilter []*Node // phase 1a: view-free filter operations
	FilterOps      []*Node // phase 1b: filter operations requiring views-for-filter
	QueryParallel  bool
	ProfileText    string // KQuery: per-rule profiling label; empty disables frequency counting

	// --- Control ---
	Sequence       []*Node // KSequence / KParallel children, in order
	SubroutineName string  // KCall
	CallArgs       []*Node // KCall argument expressions
	SubroutineTree *Node   // unused: KCall looks SubroutineName up in the Runtime's subroutines at execution time

	IO             *IODirective // KIO
	LogMessage     string       // KLogTimer/KLogRelationTimer/KLogSize/KDebugInfo
	LogRelation    string       // KLogRelationTimer/KLogSize
	AssignVar      string       // KAssign
	AssignExpr     *Node        // KAssign

	CountColumns []int   // KEstimateJoinSize: columns to group by
	ConstantMask []*Node // KEstimateJoinSize: constant mask per grouped column (nil = wildcard)
	Recursive    bool    // KEstimateJoinSize: recursive vs non-recursive tag
}

// RelationDecl is one entry of a translation unit's schema (spec.md §3
// "Relations: created once at Engine setup ... never re-allocated
// during a program run"): a name, its column types, its representation
// kind, and the index orders it should be clustered under.
type RelationDecl struct {
	Name    string
	Types   []domain.Type
	Kind    relation.Kind
	Cluster relation.IndexCluster
}

// TranslationUnit is the input spec.md §3 describes an Engine as being
// constructed from: "a RAM translation unit and a thread count". The
// relation schema is created once, up front; MainSubroutine names the
// entry point among Subroutines (conventionally "main").
type TranslationUnit struct {
	Relations      []RelationDecl
	Subroutines    map[string]*Node
	MainSubroutine string
}

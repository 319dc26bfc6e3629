package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/functor"
	"github.com/Pudrick/Souffle-mod/ram"
	"github.com/Pudrick/Souffle-mod/record"
	"github.com/Pudrick/Souffle-mod/relation"
	"github.com/Pudrick/Souffle-mod/symbol"
)

func constNode(v int64) *ram.Node {
	return &ram.Node{Kind: ram.KConstant, Value: domain.FromSigned(v), ValueType: domain.Signed}
}

func tupleElem(tupleID, col int) *ram.Node {
	return &ram.Node{Kind: ram.KTupleElement, TupleID: tupleID, Column: col}
}

func varNode(name string) *ram.Node {
	return &ram.Node{Kind: ram.KVariable, VarName: name}
}

func twoColumnRelation(name string) ram.RelationDecl {
	return ram.RelationDecl{
		Name:  name,
		Types: []domain.Type{domain.Signed, domain.Signed},
		Kind:  relation.BTree,
	}
}

// transitiveClosureUnit builds the RAM tree for the scenario: seed
// TC from Edge, then repeatedly join TC with Edge and insert any new
// (x,z) pair until a fixed point is reached. Convergence is detected
// through a stateful "tcSize" functor since no RAM expression reads a
// relation's cardinality directly.
func transitiveClosureUnit() *ram.TranslationUnit {
	seed := &ram.Node{
		Kind:         ram.KScan,
		RelationName: "Edge",
		TupleID:      0,
		Nested: &ram.Node{
			Kind:         ram.KInsert,
			RelationName: "TC",
			InsertPattern: &ram.Pattern{
				First: []*ram.Node{tupleElem(0, 0), tupleElem(0, 1)},
			},
			ViewOrder: []int{0, 1},
		},
	}

	joinAndInsert := &ram.Node{
		Kind:         ram.KScan,
		RelationName: "TC",
		TupleID:      0,
		Nested: &ram.Node{
			Kind:         ram.KScan,
			RelationName: "Edge",
			TupleID:      1,
			Nested: &ram.Node{
				Kind: ram.KFilter,
				Condition: &ram.Node{
					Kind:        ram.KConstraint,
					Constraint:  ram.CEq,
					Operand1:    tupleElem(0, 1),
					Operand2:    tupleElem(1, 0),
					CompareType: domain.Signed,
				},
				Nested: &ram.Node{
					Kind: ram.KFilter,
					Condition: &ram.Node{
						Kind: ram.KNegation,
						Negated: &ram.Node{
							Kind:         ram.KExistenceCheck,
							RelationName: "TC",
							SearchPattern: &ram.Pattern{
								First: []*ram.Node{tupleElem(0, 0), tupleElem(1, 1)},
							},
							ViewOrder: []int{0, 1},
						},
					},
					Nested: &ram.Node{
						Kind:         ram.KInsert,
						RelationName: "TC",
						InsertPattern: &ram.Pattern{
							First: []*ram.Node{tupleElem(0, 0), tupleElem(1, 1)},
						},
						ViewOrder: []int{0, 1},
					},
				},
			},
		},
	}
	joinQuery := &ram.Node{Kind: ram.KQuery, Nested: joinAndInsert}

	sizeCall := func() *ram.Node {
		return &ram.Node{Kind: ram.KUserOperator, FunctorName: "tcSize", Stateful: true}
	}

	loopBody := &ram.Node{Kind: ram.KSequence, Sequence: []*ram.Node{
		joinQuery,
		{Kind: ram.KAssign, AssignVar: "newSize", AssignExpr: sizeCall()},
		{Kind: ram.KExit, Condition: &ram.Node{
			Kind:        ram.KConstraint,
			Constraint:  ram.CEq,
			Operand1:    varNode("newSize"),
			Operand2:    varNode("lastSize"),
			CompareType: domain.Signed,
		}},
		{Kind: ram.KAssign, AssignVar: "lastSize", AssignExpr: varNode("newSize")},
	}}

	main := &ram.Node{Kind: ram.KSequence, Sequence: []*ram.Node{
		seed,
		{Kind: ram.KAssign, AssignVar: "lastSize", AssignExpr: sizeCall()},
		{Kind: ram.KLoop, Nested: loopBody},
	}}

	return &ram.TranslationUnit{
		Relations:      []ram.RelationDecl{twoColumnRelation("Edge"), twoColumnRelation("TC")},
		Subroutines:    map[string]*ram.Node{"main": main},
		MainSubroutine: "main",
	}
}

func registerTCSize(tcName string) func(*functor.Bridge, map[string]*relation.Slot) {
	return func(fn *functor.Bridge, relations map[string]*relation.Slot) {
		tc := relations[tcName]
		fn.RegisterStateful(functor.Descriptor{Name: "tcSize", ReturnType: functor.TSigned}, func(_ *symbol.Table, _ *record.Table, _ []domain.Word) domain.Word {
			return domain.FromSigned(int64(tc.Rel.Size()))
		})
	}
}

func TestEngineExecuteMainComputesTransitiveClosure(t *testing.T) {
	unit := transitiveClosureUnit()

	e, err := New(unit, Config{Threads: 1}, registerTCSize("TC"))
	require.NoError(t, err)
	defer e.Close()

	edge, ok := e.Relation("Edge")
	require.True(t, ok)
	edge.Insert(domain.Tuple{domain.FromSigned(1), domain.FromSigned(2)})
	edge.Insert(domain.Tuple{domain.FromSigned(2), domain.FromSigned(3)})
	edge.Insert(domain.Tuple{domain.FromSigned(3), domain.FromSigned(4)})

	require.Nil(t, e.ExecuteMain())

	tc, ok := e.Relation("TC")
	require.True(t, ok)
	require.Equal(t, 6, tc.Size())

	expected := []domain.Tuple{
		{domain.FromSigned(1), domain.FromSigned(2)},
		{domain.FromSigned(2), domain.FromSigned(3)},
		{domain.FromSigned(3), domain.FromSigned(4)},
		{domain.FromSigned(1), domain.FromSigned(3)},
		{domain.FromSigned(2), domain.FromSigned(4)},
		{domain.FromSigned(1), domain.FromSigned(4)},
	}
	for _, tup := range expected {
		require.True(t, tc.Contains(tup), "missing %v", tup)
	}
}

func TestNewRejectsNilTranslationUnit(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, CodeConfig, cfgErr.Code)
}

func TestNewRejectsMissingMainSubroutine(t *testing.T) {
	unit := &ram.TranslationUnit{
		Subroutines:    map[string]*ram.Node{"other": {Kind: ram.KSequence}},
		MainSubroutine: "main",
	}
	_, err := New(unit, Config{}, nil)
	require.Error(t, err)
}

func TestNewRejectsDuplicateRelationNames(t *testing.T) {
	unit := &ram.TranslationUnit{
		Relations: []ram.RelationDecl{
			twoColumnRelation("R"),
			twoColumnRelation("R"),
		},
		Subroutines:    map[string]*ram.Node{"main": {Kind: ram.KSequence}},
		MainSubroutine: "main",
	}
	_, err := New(unit, Config{}, nil)
	require.Error(t, err)
}

func TestCloseIsIdempotentAndBlocksFurtherExecuteMain(t *testing.T) {
	unit := &ram.TranslationUnit{
		Subroutines:    map[string]*ram.Node{"main": {Kind: ram.KSequence}},
		MainSubroutine: "main",
	}
	e, err := New(unit, Config{Threads: 1}, nil)
	require.NoError(t, err)

	require.Nil(t, e.ExecuteMain())

	e.Close()
	e.Close() // must not panic

	closedErr := e.ExecuteMain()
	require.NotNil(t, closedErr)
	require.Equal(t, CodeConfig, closedErr.Code)
}

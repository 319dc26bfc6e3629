package node

// Walk calls visit on n and every reachable descendant, depth-first.
// Grounded on open-policy-agent-opa/v1/ast/visit.go's exhaustive
// field-by-field AST walk, adapted to this package's shadow-node shape.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Elems {
		Walk(c, visit)
	}
	for _, c := range n.Operands {
		Walk(c, visit)
	}
	Walk(n.Step, visit)
	Walk(n.Operand1, visit)
	Walk(n.Operand2, visit)
	for _, c := range n.Conjuncts {
		Walk(c, visit)
	}
	Walk(n.Negated, visit)
	Walk(n.Guard, visit)
	Walk(n.ProvenanceExpr, visit)
	Walk(n.Nested, visit)
	Walk(n.Condition, visit)
	Walk(n.AggInit, visit)
	Walk(n.AggValue, visit)
	Walk(n.RecordExpr, visit)
	for _, c := range n.ViewFreeFilter {
		Walk(c, visit)
	}
	for _, c := range n.FilterOps {
		Walk(c, visit)
	}
	for _, c := range n.Sequence {
		Walk(c, visit)
	}
	for _, c := range n.CallArgs {
		Walk(c, visit)
	}
	Walk(n.AssignExpr, visit)
	for _, c := range n.ConstantMask {
		Walk(c, visit)
	}
	if n.SuperInstr != nil {
		for _, e := range n.SuperInstr.ExprFirst {
			Walk(e.Node, visit)
		}
		for _, e := range n.SuperInstr.ExprSecond {
			Walk(e.Node, visit)
		}
	}
}

// CollectViewNodes returns every descendant of n (including n itself)
// that owns a view (ViewID >= 0), in the order Walk visits them. Used
// by node.Generator to build a Query node's ViewsForFilter/
// ViewsForNested lists (spec.md §4.8).
func CollectViewNodes(n *Node) []*Node {
	var nodes []*Node
	Walk(n, func(cur *Node) {
		if cur.ViewID >= 0 {
			nodes = append(nodes, cur)
		}
	})
	return nodes
}

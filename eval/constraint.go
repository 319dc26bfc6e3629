package eval

import (
	"strings"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/internal/logging"
	"github.com/Pudrick/Souffle-mod/node"
)

// evalConstraint implements spec.md §4.2.4: typed comparators plus the
// string-only MATCH/NOT_MATCH/CONTAINS/NOT_CONTAINS tests. A regex
// compile failure is a runtime warning (spec.md §7 kind 2): it logs and
// the match evaluates as if the pattern never matched.
func evalConstraint(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	a := execute(rt, n.Operand1, ctx, nil)

	switch n.Constraint {
	case "EQ":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) == 0)
	case "NE":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) != 0)
	case "LT":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) < 0)
	case "LE":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) <= 0)
	case "GT":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) > 0)
	case "GE":
		b := execute(rt, n.Operand2, ctx, nil)
		return boolWord(domain.Compare(a, b, n.CompareType) >= 0)
	case "MATCH":
		return boolWord(matches(rt, n, ctx, a))
	case "NOT_MATCH":
		return boolWord(!matches(rt, n, ctx, a))
	case "CONTAINS":
		needle, haystack := decodeContainsOperands(rt, n, ctx, a)
		return boolWord(strings.Contains(haystack, needle))
	case "NOT_CONTAINS":
		needle, haystack := decodeContainsOperands(rt, n, ctx, a)
		return boolWord(!strings.Contains(haystack, needle))
	default:
		structural("unrecognized constraint %q", n.Constraint)
		return falseWord
	}
}

func matches(rt *Runtime, n *node.Node, ctx *execctx.Context, subject domain.Word) bool {
	pattern := rt.Symbols.Decode(subject)
	text := rt.Symbols.Decode(execute(rt, n.Operand2, ctx, nil))
	re, err := rt.Regex.Compile(pattern)
	if err != nil {
		logging.Default.Warnf("MATCH: pattern %q failed to compile: %v", pattern, err)
		return false
	}
	return re.MatchString(text)
}

// decodeContainsOperands treats Operand1 as the needle and Operand2 as
// the haystack, matching the source's CONTAINS(substring, string)
// argument order.
func decodeContainsOperands(rt *Runtime, n *node.Node, ctx *execctx.Context, first domain.Word) (needle, haystack string) {
	needle = rt.Symbols.Decode(first)
	haystack = rt.Symbols.Decode(execute(rt, n.Operand2, ctx, nil))
	return
}

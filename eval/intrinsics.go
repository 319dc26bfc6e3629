package eval

import (
	"math"

	"github.com/Pudrick/Souffle-mod/domain"
	"github.com/Pudrick/Souffle-mod/execctx"
	"github.com/Pudrick/Souffle-mod/internal/logging"
	"github.com/Pudrick/Souffle-mod/node"
)

// evalPackRecord builds a fixed-arity record from its element
// expressions and interns it (spec.md §4.2.5): a KPackRecord whose
// Elems are all nil packs the reserved nil reference without touching
// the record table.
func evalPackRecord(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	allNil := true
	tuple := make(domain.Tuple, len(n.Elems))
	for i, e := range n.Elems {
		if e == nil {
			continue
		}
		allNil = false
		tuple[i] = execute(rt, e, ctx, nil)
	}
	if allNil {
		return domain.Nil
	}
	return rt.Records.Pack(tuple, n.RecordArity)
}

func evalUserOperator(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	args := make([]domain.Word, len(n.Operands))
	for i, op := range n.Operands {
		args[i] = execute(rt, op, ctx, nil)
	}
	var (
		result domain.Word
		err    error
	)
	if n.Stateful {
		result, err = rt.Functors.InvokeStateful(n.FunctorName, args)
	} else {
		result, err = rt.Functors.InvokeStateless(n.FunctorName, args)
	}
	if err != nil {
		functorFault("%s: %v", n.FunctorName, err)
	}
	return result
}

// evalUnary and evalBinary implement spec.md §4.2.1: sign/bitwise/
// logical negation, cross-type conversions, and arithmetic/bitwise/
// logical/string binary operators, plus the n-ary MIN/MAX/CAT and
// ternary SUBSTR that share the intrinsic Op tag.
func evalUnary(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	a := execute(rt, n.Operands[0], ctx, nil)
	switch n.Op {
	case "NEG":
		return domain.FromSigned(-a.Signed())
	case "BNOT":
		return domain.FromUnsigned(^a.Unsigned())
	case "LNOT":
		return boolWord(!truth(a))
	case "I2U":
		return domain.FromUnsigned(uint64(a.Signed()))
	case "I2F":
		return domain.FromFloat(float64(a.Signed()))
	case "U2I":
		return domain.FromSigned(int64(a.Unsigned()))
	case "U2F":
		return domain.FromFloat(float64(a.Unsigned()))
	case "F2I":
		return domain.FromSigned(int64(a.Float()))
	case "F2U":
		return domain.FromUnsigned(uint64(a.Float()))
	case "I2S":
		return rt.Symbols.Encode(intToString(a.Signed()))
	case "S2I":
		return domain.FromSigned(stringToInt(rt.Symbols.Decode(a)))
	case "U2S":
		return rt.Symbols.Encode(uintToString(a.Unsigned()))
	case "S2U":
		return domain.FromUnsigned(stringToUint(rt.Symbols.Decode(a)))
	case "F2S":
		return rt.Symbols.Encode(floatToString(a.Float()))
	case "S2F":
		return domain.FromFloat(stringToFloat(rt.Symbols.Decode(a)))
	default:
		structural("unrecognized unary intrinsic %q", n.Op)
		return domain.Nil
	}
}

func evalBinary(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	switch n.Op {
	case "MIN", "MAX", "CAT":
		return evalVariadic(rt, n, ctx)
	case "SUBSTR":
		return evalSubstr(rt, n, ctx)
	}
	a := execute(rt, n.Operands[0], ctx, nil)
	b := execute(rt, n.Operands[1], ctx, nil)
	switch n.Op {
	case "ADD":
		return addTyped(a, b, n.Operands[0])
	case "SUB":
		return subTyped(a, b, n.Operands[0])
	case "MUL":
		return mulTyped(a, b, n.Operands[0])
	case "DIV":
		return divTyped(a, b, n.Operands[0])
	case "MOD":
		return modTyped(a, b, n.Operands[0])
	case "EXP":
		return domain.FromFloat(math.Pow(a.Float(), b.Float()))
	case "BAND":
		return domain.FromUnsigned(a.Unsigned() & b.Unsigned())
	case "BOR":
		return domain.FromUnsigned(a.Unsigned() | b.Unsigned())
	case "BXOR":
		return domain.FromUnsigned(a.Unsigned() ^ b.Unsigned())
	case "BSHIFT_L":
		return domain.FromUnsigned(a.Unsigned() << domain.ShiftMask(b.Unsigned()))
	case "BSHIFT_R":
		return shiftRTyped(a, b, n.Operands[0])
	case "LAND":
		return boolWord(truth(a) && truth(b))
	case "LOR":
		return boolWord(truth(a) || truth(b))
	case "LXOR":
		return boolWord(truth(a) != truth(b))
	default:
		structural("unrecognized binary intrinsic %q", n.Op)
		return domain.Nil
	}
}

// operandType is the type an untyped intrinsic dispatches arithmetic
// under: the left operand's declared value type. Nodes that are
// themselves sub-expressions rather than a constant/column read carry
// the zero value, which is domain.Signed — the same fallback addTyped
// always used.
func operandType(left *node.Node) domain.Type {
	if left == nil {
		return domain.Signed
	}
	return left.ValueType
}

// addTyped adds a and b under the type its left operand's declared
// value type carries, so ADD over float columns does not silently
// truncate through the signed path.
func addTyped(a, b domain.Word, left *node.Node) domain.Word {
	switch operandType(left) {
	case domain.Float:
		return domain.FromFloat(a.Float() + b.Float())
	case domain.Unsigned:
		return domain.FromUnsigned(a.Unsigned() + b.Unsigned())
	default:
		return domain.FromSigned(a.Signed() + b.Signed())
	}
}

// subTyped and mulTyped mirror addTyped: for Unsigned operands they are
// bit-identical to the Signed path under two's-complement wraparound,
// but Float operands need genuine float arithmetic rather than a
// bit-cast through the raw word.
func subTyped(a, b domain.Word, left *node.Node) domain.Word {
	switch operandType(left) {
	case domain.Float:
		return domain.FromFloat(a.Float() - b.Float())
	case domain.Unsigned:
		return domain.FromUnsigned(a.Unsigned() - b.Unsigned())
	default:
		return domain.FromSigned(a.Signed() - b.Signed())
	}
}

func mulTyped(a, b domain.Word, left *node.Node) domain.Word {
	switch operandType(left) {
	case domain.Float:
		return domain.FromFloat(a.Float() * b.Float())
	case domain.Unsigned:
		return domain.FromUnsigned(a.Unsigned() * b.Unsigned())
	default:
		return domain.FromSigned(a.Signed() * b.Signed())
	}
}

// divTyped and modTyped dispatch on the left operand's declared type.
// A zero integer divisor is a fatal structural error; a zero Float
// divisor is not special-cased at all and falls through to the IEEE
// result (±Inf or NaN), per spec.md's distinction between integer and
// float division by zero.
func divTyped(a, b domain.Word, left *node.Node) domain.Word {
	switch operandType(left) {
	case domain.Float:
		return domain.FromFloat(a.Float() / b.Float())
	case domain.Unsigned:
		if b.Unsigned() == 0 {
			structural("division by zero")
		}
		return domain.FromUnsigned(a.Unsigned() / b.Unsigned())
	default:
		if b.Signed() == 0 {
			structural("division by zero")
		}
		return domain.FromSigned(a.Signed() / b.Signed())
	}
}

func modTyped(a, b domain.Word, left *node.Node) domain.Word {
	switch operandType(left) {
	case domain.Float:
		return domain.FromFloat(math.Mod(a.Float(), b.Float()))
	case domain.Unsigned:
		if b.Unsigned() == 0 {
			structural("modulo by zero")
		}
		return domain.FromUnsigned(a.Unsigned() % b.Unsigned())
	default:
		if b.Signed() == 0 {
			structural("modulo by zero")
		}
		return domain.FromSigned(a.Signed() % b.Signed())
	}
}

// shiftRTyped implements BSHIFT_R's type split (spec.md §4.2.1: right
// shift is arithmetic for Signed, logical for Unsigned) — the original
// source spells this as two opcodes; this repository's single untyped
// OpBShiftR dispatches on the left operand's declared type instead.
func shiftRTyped(a, b domain.Word, left *node.Node) domain.Word {
	if operandType(left) == domain.Signed {
		return domain.FromSigned(a.Signed() >> domain.ShiftMask(uint64(b.Signed())))
	}
	return domain.FromUnsigned(a.Unsigned() >> domain.ShiftMask(b.Unsigned()))
}

// evalVariadic implements the n-ary MIN/MAX/CAT operators (spec.md
// §4.2.1): each folds its Operands list left to right.
func evalVariadic(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	vals := make([]domain.Word, len(n.Operands))
	for i, op := range n.Operands {
		vals[i] = execute(rt, op, ctx, nil)
	}
	switch n.Op {
	case "CAT":
		s := ""
		for _, v := range vals {
			s += rt.Symbols.Decode(v)
		}
		return rt.Symbols.Encode(s)
	case "MIN":
		best := vals[0]
		t := variadicType(n)
		for _, v := range vals[1:] {
			if domain.Compare(v, best, t) < 0 {
				best = v
			}
		}
		return best
	default: // MAX
		best := vals[0]
		t := variadicType(n)
		for _, v := range vals[1:] {
			if domain.Compare(v, best, t) > 0 {
				best = v
			}
		}
		return best
	}
}

// variadicType picks the type MIN/MAX compares under: the first
// operand's declared value type, the same convention operandType
// applies to the typed binary operators.
func variadicType(n *node.Node) domain.Type {
	if len(n.Operands) == 0 {
		return domain.Signed
	}
	return operandType(n.Operands[0])
}

// evalSubstr implements SUBSTR(s, from, len) (spec.md §4.2.1, §7 kind
// 2): an out-of-range slice is a runtime warning, not a fault — it logs
// and yields the empty string.
func evalSubstr(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	s := rt.Symbols.Decode(execute(rt, n.Operands[0], ctx, nil))
	from := int(execute(rt, n.Operands[1], ctx, nil).Signed())
	length := int(execute(rt, n.Operands[2], ctx, nil).Signed())
	if from < 0 || from > len(s) || length < 0 || from+length > len(s) {
		logging.Default.Warnf("SUBSTR(%q, %d, %d): range out of bounds, yielding empty string", s, from, length)
		return rt.Symbols.Encode("")
	}
	return rt.Symbols.Encode(s[from : from+length])
}

// evalRangeEmitter drives RANGE/URANGE/FRANGE (spec.md §4.2.2): a
// half-open [from,to) enumeration, optionally stepped, binding each
// element to n.TupleID before running n.Nested. Iteration halts as soon
// as n.Nested signals a stop.
func evalRangeEmitter(rt *Runtime, n *node.Node, ctx *execctx.Context) domain.Word {
	from := execute(rt, n.Operands[0], ctx, nil)
	to := execute(rt, n.Operands[1], ctx, nil)
	step := domain.FromSigned(1)
	if n.Step != nil {
		step = execute(rt, n.Step, ctx, nil)
	}
	switch n.Op {
	case "URANGE":
		return rangeUnsigned(rt, n, ctx, from.Unsigned(), to.Unsigned(), step.Unsigned())
	case "FRANGE":
		return rangeFloat(rt, n, ctx, from.Float(), to.Float(), step.Float())
	default:
		return rangeSigned(rt, n, ctx, from.Signed(), to.Signed(), step.Signed())
	}
}

func rangeSigned(rt *Runtime, n *node.Node, ctx *execctx.Context, from, to, step int64) domain.Word {
	if step == 0 {
		structural("RANGE step must be non-zero")
	}
	for v := from; (step > 0 && v < to) || (step < 0 && v > to); v += step {
		ctx.BindTuple(n.TupleID, domain.Tuple{domain.FromSigned(v)})
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			return falseWord
		}
	}
	return trueWord
}

func rangeUnsigned(rt *Runtime, n *node.Node, ctx *execctx.Context, from, to, step uint64) domain.Word {
	if step == 0 {
		structural("URANGE step must be non-zero")
	}
	for v := from; v < to; v += step {
		ctx.BindTuple(n.TupleID, domain.Tuple{domain.FromUnsigned(v)})
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			return falseWord
		}
	}
	return trueWord
}

func rangeFloat(rt *Runtime, n *node.Node, ctx *execctx.Context, from, to, step float64) domain.Word {
	if step == 0 {
		structural("FRANGE step must be non-zero")
	}
	for v := from; (step > 0 && v < to) || (step < 0 && v > to); v += step {
		ctx.BindTuple(n.TupleID, domain.Tuple{domain.FromFloat(v)})
		if !truth(execute(rt, n.Nested, ctx, nil)) {
			return falseWord
		}
	}
	return trueWord
}

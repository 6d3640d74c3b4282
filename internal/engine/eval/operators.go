package eval

import (
	"fmt"
	"strings"

	"staticreflect/internal/engine/source"
	"staticreflect/internal/engine/value"
)

func (e *Evaluator) evalBinary(f *frame, n *source.BinaryExpr) (value.Value, error) {
	op := strings.ToLower(n.Op)
	switch op {
	case "&&", "and":
		return e.evalShortCircuit(f, n, false)
	case "||", "or":
		return e.evalShortCircuit(f, n, true)
	case "??":
		return e.evalCoalesce(f, n)
	}

	left, err := e.eval(f, n.Left)
	if err != nil {
		return value.Value{}, err
	}
	right, err := e.eval(f, n.Right)
	if err != nil {
		return value.Value{}, err
	}

	var out value.Value
	switch op {
	case "+":
		out, err = value.Add(left, right)
	case "-":
		out, err = value.Sub(left, right)
	case "*":
		out, err = value.Mul(left, right)
	case "/":
		out, err = value.Div(left, right)
	case "%":
		out, err = value.Mod(left, right)
	case "**":
		out, err = value.Pow(left, right)
	case ".":
		out, err = value.Concat(left, right)
	case "&", "|", "^":
		out, err = value.Bitwise(op, left, right)
	case "<<", ">>":
		out, err = value.Shift(op, left, right)
	case "xor":
		out = value.Bool(value.ToBool(left) != value.ToBool(right))
	case "==":
		out = value.Bool(value.LooseEqual(left, right))
	case "!=", "<>":
		out = value.Bool(!value.LooseEqual(left, right))
	case "===":
		out = value.Bool(value.Identical(left, right))
	case "!==":
		out = value.Bool(!value.Identical(left, right))
	case "<":
		out = value.Bool(value.Compare(left, right) < 0)
	case "<=":
		out = value.Bool(value.Compare(left, right) <= 0)
	// a > b is evaluated as b < a
	case ">":
		out = value.Bool(value.Compare(right, left) < 0)
	case ">=":
		out = value.Bool(value.Compare(right, left) <= 0)
	case "<=>":
		out = value.Int(int64(value.Compare(left, right)))
	default:
		return value.Value{}, unsupported(n, fmt.Sprintf("binary operator %q", n.Op))
	}
	if err != nil {
		return value.Value{}, operandError(n, err)
	}
	return out, nil
}

// evalShortCircuit handles && and ||; stopOn is the left truth value that
// decides the result without evaluating the right operand.
func (e *Evaluator) evalShortCircuit(f *frame, n *source.BinaryExpr, stopOn bool) (value.Value, error) {
	left, err := e.eval(f, n.Left)
	if err != nil {
		return value.Value{}, err
	}
	if value.ToBool(left) == stopOn {
		return value.Bool(stopOn), nil
	}
	right, err := e.eval(f, n.Right)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bool(value.ToBool(right)), nil
}

// evalCoalesce treats a missing array key on the left as null.
func (e *Evaluator) evalCoalesce(f *frame, n *source.BinaryExpr) (value.Value, error) {
	var (
		left value.Value
		err  error
	)
	if idx, ok := n.Left.(*source.IndexFetch); ok {
		f.depth++
		left, err = e.evalIndex(f, idx, true)
		f.depth--
	} else {
		left, err = e.eval(f, n.Left)
	}
	if err != nil {
		return value.Value{}, err
	}
	if !left.IsNull() {
		return left, nil
	}
	return e.eval(f, n.Right)
}

func (e *Evaluator) evalUnary(f *frame, n *source.UnaryExpr) (value.Value, error) {
	operand, err := e.eval(f, n.Operand)
	if err != nil {
		return value.Value{}, err
	}
	var out value.Value
	switch n.Op {
	case "-":
		out, err = value.Negate(operand)
	case "+":
		out, err = value.Plus(operand)
	case "!":
		out = value.Bool(!value.ToBool(operand))
	case "~":
		out, err = value.BitNot(operand)
	default:
		return value.Value{}, unsupported(n, fmt.Sprintf("unary operator %q", n.Op))
	}
	if err != nil {
		return value.Value{}, operandError(n, err)
	}
	return out, nil
}

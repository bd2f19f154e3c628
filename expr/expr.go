// Package expr implements the immutable expression graph that nonlinear
// programs are built from. Nodes are created once and never mutated;
// composing two expressions always allocates a new node, so the same graph
// can be shared between any number of constraints and objectives and
// evaluated concurrently.
package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Op identifies the operation a node performs. The set is closed: adding a
// new operation means adding a variant here together with its evaluation and
// derivative rules in eval.go.
type Op uint8

const (
	OpConst Op = iota
	OpVar
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpNeg
	OpAbs
	OpSin
	OpCos
	OpTan
	OpExp
	OpLog
	OpSqrt
)

func (op Op) String() string {
	switch op {
	case OpConst:
		return "const"
	case OpVar:
		return "var"
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMul:
		return "mul"
	case OpDiv:
		return "div"
	case OpPow:
		return "pow"
	case OpNeg:
		return "neg"
	case OpAbs:
		return "abs"
	case OpSin:
		return "sin"
	case OpCos:
		return "cos"
	case OpTan:
		return "tan"
	case OpExp:
		return "exp"
	case OpLog:
		return "log"
	case OpSqrt:
		return "sqrt"
	}
	return fmt.Sprintf("op(%d)", op)
}

// Expr is a single node of an expression graph. Unary nodes store their
// operand in left; binary nodes use both left and right.
type Expr struct {
	op    Op
	left  *Expr
	right *Expr
	value float64 // OpConst
	name  string  // OpVar
}

// Assignment maps decision variable names to candidate values.
type Assignment map[string]float64

// Const returns a constant node.
func Const(v float64) *Expr { return &Expr{op: OpConst, value: v} }

// NewVar returns a reference node for the named decision variable. Problem
// models hand these out from AddDecisionVariable; building one directly is
// fine as long as the name is registered before the expression is added.
func NewVar(name string) *Expr { return &Expr{op: OpVar, name: name} }

func binary(op Op, left, right *Expr) *Expr { return &Expr{op: op, left: left, right: right} }
func unary(op Op, operand *Expr) *Expr      { return &Expr{op: op, left: operand} }

// Op returns the node's operation tag.
func (e *Expr) Op() Op { return e.op }

// VarName returns the referenced variable name for OpVar nodes, "" otherwise.
func (e *Expr) VarName() string { return e.name }

// Add returns e + o.
func (e *Expr) Add(o *Expr) *Expr { return binary(OpAdd, e, o) }

// Sub returns e - o.
func (e *Expr) Sub(o *Expr) *Expr { return binary(OpSub, e, o) }

// Mul returns e * o.
func (e *Expr) Mul(o *Expr) *Expr { return binary(OpMul, e, o) }

// Div returns e / o.
func (e *Expr) Div(o *Expr) *Expr { return binary(OpDiv, e, o) }

// Pow returns e raised to the constant exponent p.
func (e *Expr) Pow(p float64) *Expr { return binary(OpPow, e, Const(p)) }

// PowExpr returns e raised to an expression exponent.
func (e *Expr) PowExpr(p *Expr) *Expr { return binary(OpPow, e, p) }

// AddConst returns e + c.
func (e *Expr) AddConst(c float64) *Expr { return binary(OpAdd, e, Const(c)) }

// SubConst returns e - c.
func (e *Expr) SubConst(c float64) *Expr { return binary(OpSub, e, Const(c)) }

// Scale returns c * e.
func (e *Expr) Scale(c float64) *Expr { return binary(OpMul, Const(c), e) }

// Neg returns -e.
func (e *Expr) Neg() *Expr { return unary(OpNeg, e) }

// Free-function constructors, for callers that prefer prefix composition.

func Add(a, b *Expr) *Expr  { return binary(OpAdd, a, b) }
func Sub(a, b *Expr) *Expr  { return binary(OpSub, a, b) }
func Mul(a, b *Expr) *Expr  { return binary(OpMul, a, b) }
func Div(a, b *Expr) *Expr  { return binary(OpDiv, a, b) }
func Pow(a, b *Expr) *Expr  { return binary(OpPow, a, b) }
func Neg(a *Expr) *Expr     { return unary(OpNeg, a) }
func Abs(a *Expr) *Expr     { return unary(OpAbs, a) }
func Sin(a *Expr) *Expr     { return unary(OpSin, a) }
func Cos(a *Expr) *Expr     { return unary(OpCos, a) }
func Tan(a *Expr) *Expr     { return unary(OpTan, a) }
func Exp(a *Expr) *Expr     { return unary(OpExp, a) }
func Log(a *Expr) *Expr     { return unary(OpLog, a) }
func Sqrt(a *Expr) *Expr    { return unary(OpSqrt, a) }

// Sum folds any number of expressions into a left-associated sum.
// Sum() is the zero constant.
func Sum(exprs ...*Expr) *Expr {
	if len(exprs) == 0 {
		return Const(0)
	}
	acc := exprs[0]
	for _, e := range exprs[1:] {
		acc = binary(OpAdd, acc, e)
	}
	return acc
}

// Vars returns the names of all decision variables the expression
// references, sorted for deterministic iteration.
func (e *Expr) Vars() []string {
	set := make(map[string]struct{})
	e.collectVars(set)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Expr) collectVars(set map[string]struct{}) {
	switch e.op {
	case OpConst:
	case OpVar:
		set[e.name] = struct{}{}
	default:
		e.left.collectVars(set)
		if e.right != nil {
			e.right.collectVars(set)
		}
	}
}

func (e *Expr) hasVars() bool {
	switch e.op {
	case OpConst:
		return false
	case OpVar:
		return true
	default:
		if e.left.hasVars() {
			return true
		}
		return e.right != nil && e.right.hasVars()
	}
}

// String renders the expression in infix form, parenthesized enough to be
// unambiguous. Intended for logs and error messages, not for parsing.
func (e *Expr) String() string {
	var sb strings.Builder
	e.render(&sb)
	return sb.String()
}

func (e *Expr) render(sb *strings.Builder) {
	switch e.op {
	case OpConst:
		sb.WriteString(strconv.FormatFloat(e.value, 'g', -1, 64))
	case OpVar:
		sb.WriteString(e.name)
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		sb.WriteByte('(')
		e.left.render(sb)
		switch e.op {
		case OpAdd:
			sb.WriteString(" + ")
		case OpSub:
			sb.WriteString(" - ")
		case OpMul:
			sb.WriteString(" * ")
		case OpDiv:
			sb.WriteString(" / ")
		case OpPow:
			sb.WriteString("^")
		}
		e.right.render(sb)
		sb.WriteByte(')')
	case OpNeg:
		sb.WriteString("-(")
		e.left.render(sb)
		sb.WriteByte(')')
	default:
		sb.WriteString(e.op.String())
		sb.WriteByte('(')
		e.left.render(sb)
		sb.WriteByte(')')
	}
}

package expr

import (
	"encoding/json"
	"fmt"
)

// Wire form for expression trees, used by the HTTP service and the CLI.
// Every node is a tagged object:
//
//	{"type":"const","value":2.5}
//	{"type":"var","name":"x"}
//	{"type":"mul","left":{...},"right":{...}}
//	{"type":"sin","arg":{...}}
type nodeJSON struct {
	Type  string    `json:"type"`
	Value *float64  `json:"value,omitempty"`
	Name  string    `json:"name,omitempty"`
	Left  *nodeJSON `json:"left,omitempty"`
	Right *nodeJSON `json:"right,omitempty"`
	Arg   *nodeJSON `json:"arg,omitempty"`
}

var opNames = map[string]Op{
	"const": OpConst,
	"var":   OpVar,
	"add":   OpAdd,
	"sub":   OpSub,
	"mul":   OpMul,
	"div":   OpDiv,
	"pow":   OpPow,
	"neg":   OpNeg,
	"abs":   OpAbs,
	"sin":   OpSin,
	"cos":   OpCos,
	"tan":   OpTan,
	"exp":   OpExp,
	"log":   OpLog,
	"sqrt":  OpSqrt,
}

// MarshalJSON implements json.Marshaler.
func (e *Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toNode())
}

func (e *Expr) toNode() *nodeJSON {
	switch e.op {
	case OpConst:
		v := e.value
		return &nodeJSON{Type: "const", Value: &v}
	case OpVar:
		return &nodeJSON{Type: "var", Name: e.name}
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		return &nodeJSON{Type: e.op.String(), Left: e.left.toNode(), Right: e.right.toNode()}
	default:
		return &nodeJSON{Type: e.op.String(), Arg: e.left.toNode()}
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var node nodeJSON
	if err := json.Unmarshal(data, &node); err != nil {
		return err
	}
	decoded, err := node.toExpr()
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

func (n *nodeJSON) toExpr() (*Expr, error) {
	op, ok := opNames[n.Type]
	if !ok {
		return nil, fmt.Errorf("unknown expression node type %q", n.Type)
	}
	switch op {
	case OpConst:
		if n.Value == nil {
			return nil, fmt.Errorf("const node missing value")
		}
		return Const(*n.Value), nil
	case OpVar:
		if n.Name == "" {
			return nil, fmt.Errorf("var node missing name")
		}
		return NewVar(n.Name), nil
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		if n.Left == nil || n.Right == nil {
			return nil, fmt.Errorf("%s node missing operand", n.Type)
		}
		left, err := n.Left.toExpr()
		if err != nil {
			return nil, err
		}
		right, err := n.Right.toExpr()
		if err != nil {
			return nil, err
		}
		return binary(op, left, right), nil
	default:
		if n.Arg == nil {
			return nil, fmt.Errorf("%s node missing arg", n.Type)
		}
		arg, err := n.Arg.toExpr()
		if err != nil {
			return nil, err
		}
		return unary(op, arg), nil
	}
}

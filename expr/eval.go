package expr

import "math"

// Eval computes the expression's value under the given assignment. It is
// deterministic and side-effect free: the same graph and assignment always
// produce the same float64. Evaluation fails with *UnboundVariableError when
// the assignment misses a referenced variable and with *DomainError when an
// operation leaves its mathematical domain.
func (e *Expr) Eval(a Assignment) (float64, error) {
	switch e.op {
	case OpConst:
		return e.value, nil
	case OpVar:
		v, ok := a[e.name]
		if !ok {
			return 0, &UnboundVariableError{Name: e.name}
		}
		return v, nil
	case OpAdd, OpSub, OpMul, OpDiv, OpPow:
		l, err := e.left.Eval(a)
		if err != nil {
			return 0, err
		}
		r, err := e.right.Eval(a)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case OpAdd:
			return l + r, nil
		case OpSub:
			return l - r, nil
		case OpMul:
			return l * r, nil
		case OpDiv:
			if r == 0 {
				return 0, &DomainError{Op: OpDiv, Detail: "division by zero"}
			}
			return l / r, nil
		default: // OpPow
			return evalPow(l, r)
		}
	default:
		v, err := e.left.Eval(a)
		if err != nil {
			return 0, err
		}
		switch e.op {
		case OpNeg:
			return -v, nil
		case OpAbs:
			return math.Abs(v), nil
		case OpSin:
			return math.Sin(v), nil
		case OpCos:
			return math.Cos(v), nil
		case OpTan:
			t := math.Tan(v)
			if math.IsInf(t, 0) || math.IsNaN(t) {
				return 0, &DomainError{Op: OpTan, Detail: "undefined at odd multiples of pi/2"}
			}
			return t, nil
		case OpExp:
			return math.Exp(v), nil
		case OpLog:
			if v <= 0 {
				return 0, &DomainError{Op: OpLog, Detail: "log of non-positive value"}
			}
			return math.Log(v), nil
		default: // OpSqrt
			if v < 0 {
				return 0, &DomainError{Op: OpSqrt, Detail: "sqrt of negative value"}
			}
			return math.Sqrt(v), nil
		}
	}
}

func evalPow(base, exp float64) (float64, error) {
	if base < 0 && exp != math.Trunc(exp) {
		return 0, &DomainError{Op: OpPow, Detail: "non-integer power of negative base"}
	}
	if base == 0 && exp < 0 {
		return 0, &DomainError{Op: OpPow, Detail: "negative power of zero"}
	}
	return math.Pow(base, exp), nil
}

// Gradient computes all partial derivatives of the expression at the given
// assignment using reverse-mode automatic differentiation. The returned map
// has an entry for every variable the expression references, including those
// whose partial happens to be zero. Failure modes match Eval; absolute value
// is differentiated with subgradient 0 at the origin.
func (e *Expr) Gradient(a Assignment) (map[string]float64, error) {
	grad := make(map[string]float64)
	for _, name := range e.Vars() {
		if _, ok := a[name]; !ok {
			return nil, &UnboundVariableError{Name: name}
		}
		grad[name] = 0
	}
	if err := e.backprop(a, 1, grad); err != nil {
		return nil, err
	}
	return grad, nil
}

// backprop pushes the adjoint seed down the graph, accumulating per-variable
// partials into grad. Child values are recomputed on the way down; graphs
// here are small trees, so a tape is not worth the bookkeeping.
func (e *Expr) backprop(a Assignment, seed float64, grad map[string]float64) error {
	switch e.op {
	case OpConst:
		return nil
	case OpVar:
		if _, ok := a[e.name]; !ok {
			return &UnboundVariableError{Name: e.name}
		}
		grad[e.name] += seed
		return nil
	case OpAdd:
		if err := e.left.backprop(a, seed, grad); err != nil {
			return err
		}
		return e.right.backprop(a, seed, grad)
	case OpSub:
		if err := e.left.backprop(a, seed, grad); err != nil {
			return err
		}
		return e.right.backprop(a, -seed, grad)
	case OpMul:
		l, err := e.left.Eval(a)
		if err != nil {
			return err
		}
		r, err := e.right.Eval(a)
		if err != nil {
			return err
		}
		if err := e.left.backprop(a, seed*r, grad); err != nil {
			return err
		}
		return e.right.backprop(a, seed*l, grad)
	case OpDiv:
		l, err := e.left.Eval(a)
		if err != nil {
			return err
		}
		r, err := e.right.Eval(a)
		if err != nil {
			return err
		}
		if r == 0 {
			return &DomainError{Op: OpDiv, Detail: "division by zero"}
		}
		if err := e.left.backprop(a, seed/r, grad); err != nil {
			return err
		}
		return e.right.backprop(a, -seed*l/(r*r), grad)
	case OpPow:
		return e.backpropPow(a, seed, grad)
	default:
		v, err := e.left.Eval(a)
		if err != nil {
			return err
		}
		var partial float64
		switch e.op {
		case OpNeg:
			partial = -1
		case OpAbs:
			switch {
			case v > 0:
				partial = 1
			case v < 0:
				partial = -1
			default:
				partial = 0
			}
		case OpSin:
			partial = math.Cos(v)
		case OpCos:
			partial = -math.Sin(v)
		case OpTan:
			c := math.Cos(v)
			if c == 0 {
				return &DomainError{Op: OpTan, Detail: "undefined at odd multiples of pi/2"}
			}
			partial = 1 / (c * c)
		case OpExp:
			partial = math.Exp(v)
		case OpLog:
			if v <= 0 {
				return &DomainError{Op: OpLog, Detail: "log of non-positive value"}
			}
			partial = 1 / v
		default: // OpSqrt
			if v < 0 {
				return &DomainError{Op: OpSqrt, Detail: "sqrt of negative value"}
			}
			s := math.Sqrt(v)
			if s == 0 {
				return &DomainError{Op: OpSqrt, Detail: "derivative undefined at zero"}
			}
			partial = 1 / (2 * s)
		}
		return e.left.backprop(a, seed*partial, grad)
	}
}

func (e *Expr) backpropPow(a Assignment, seed float64, grad map[string]float64) error {
	base, err := e.left.Eval(a)
	if err != nil {
		return err
	}
	exp, err := e.right.Eval(a)
	if err != nil {
		return err
	}
	if _, err := evalPow(base, exp); err != nil {
		return err
	}
	// d/dbase = exp * base^(exp-1)
	if exp != 0 {
		dBase := exp * math.Pow(base, exp-1)
		if math.IsInf(dBase, 0) || math.IsNaN(dBase) {
			return &DomainError{Op: OpPow, Detail: "derivative undefined at base zero"}
		}
		if err := e.left.backprop(a, seed*dBase, grad); err != nil {
			return err
		}
	}
	// d/dexp = base^exp * ln(base), only needed when the exponent itself
	// depends on a decision variable.
	if e.right.hasVars() {
		if base <= 0 {
			return &DomainError{Op: OpPow, Detail: "variable exponent requires positive base"}
		}
		dExp := math.Pow(base, exp) * math.Log(base)
		if err := e.right.backprop(a, seed*dExp, grad); err != nil {
			return err
		}
	}
	return nil
}

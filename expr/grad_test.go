package expr

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkGradient compares analytic partials against central differences at
// the given point.
func checkGradient(t *testing.T, e *Expr, a Assignment, tol float64) {
	t.Helper()

	grad, err := e.Gradient(a)
	require.NoError(t, err)

	const h = 1e-6
	for _, name := range e.Vars() {
		shifted := make(Assignment, len(a))
		for k, v := range a {
			shifted[k] = v
		}

		shifted[name] = a[name] + h
		up, err := e.Eval(shifted)
		require.NoError(t, err)

		shifted[name] = a[name] - h
		down, err := e.Eval(shifted)
		require.NoError(t, err)

		numeric := (up - down) / (2 * h)
		assert.InDelta(t, numeric, grad[name], tol, "partial d/d%s", name)
	}
}

func TestGradientBasicRules(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	a := Assignment{"x": 1.3, "y": -0.7}

	tests := []struct {
		name string
		e    *Expr
	}{
		{"sum", x.Add(y)},
		{"difference", x.Sub(y)},
		{"product", x.Mul(y)},
		{"quotient", x.Div(y)},
		{"square", x.Pow(2)},
		{"cube minus linear", x.Pow(3).Sub(x.Scale(5))},
		{"negation", y.Neg()},
		{"chain", Sin(x.Mul(y))},
		{"trig mix", Sin(x).Mul(Cos(y)).Add(Tan(x))},
		{"exp of product", Exp(x.Mul(y))},
		{"abs", Abs(y)},
		{"shared subgraph", x.Mul(y).Add(x.Mul(y))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.e, a, 1e-5)
		})
	}
}

func TestGradientPositiveDomain(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	a := Assignment{"x": 2.4, "y": 0.9}

	tests := []struct {
		name string
		e    *Expr
	}{
		{"log", Log(x)},
		{"sqrt", Sqrt(x)},
		{"log of product", Log(x.Mul(y))},
		{"variable exponent", x.PowExpr(y)},
		{"fractional power", x.Pow(1.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.e, a, 1e-5)
		})
	}
}

func TestGradientAtRandomPoints(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	z := NewVar("z")
	e := x.Pow(2).Mul(Sin(y)).Add(Exp(z.Scale(0.5))).Sub(x.Mul(z))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		a := Assignment{
			"x": rng.Float64()*4 - 2,
			"y": rng.Float64()*4 - 2,
			"z": rng.Float64()*4 - 2,
		}
		checkGradient(t, e, a, 1e-4)
	}
}

func TestGradientZeroPartials(t *testing.T) {
	x := NewVar("x")
	y := NewVar("y")
	// y appears but contributes nothing at this point.
	e := x.Pow(2).Add(y.Mul(Const(0)))

	grad, err := e.Gradient(Assignment{"x": 3, "y": 5})
	require.NoError(t, err)

	assert.Contains(t, grad, "y")
	assert.Equal(t, 0.0, grad["y"])
	assert.InDelta(t, 6.0, grad["x"], 1e-12)
}

func TestGradientAbsSubgradientAtOrigin(t *testing.T) {
	grad, err := Abs(NewVar("x")).Gradient(Assignment{"x": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, grad["x"])
}

func TestGradientErrors(t *testing.T) {
	x := NewVar("x")

	_, err := x.Pow(2).Gradient(Assignment{})
	var unbound *UnboundVariableError
	require.ErrorAs(t, err, &unbound)

	_, err = Log(x).Gradient(Assignment{"x": -1})
	var domain *DomainError
	require.ErrorAs(t, err, &domain)

	_, err = Sqrt(x).Gradient(Assignment{"x": 0})
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, OpSqrt, domain.Op)

	_, err = NewVar("x").PowExpr(NewVar("x")).Gradient(Assignment{"x": -1})
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, OpPow, domain.Op)
}

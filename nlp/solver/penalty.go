package solver

import (
	"github.com/quibbleopt/quibble/expr"
	"github.com/quibbleopt/quibble/nlp"
)

// penaltyFunc reduces the constrained program to an unconstrained surface:
// the objective plus mu times the squared violation of every constraint and
// variable bound. The surface is smooth wherever the underlying expressions
// are, so the analytic gradients from the expression graph stay usable.
type penaltyFunc struct {
	problem *nlp.Problem
	names   []string
	lower   []float64
	upper   []float64
	mu      float64
}

func newPenaltyFunc(p *nlp.Problem, mu float64) *penaltyFunc {
	vars := p.Variables()
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name()
	}
	lower, upper := p.Bounds()
	return &penaltyFunc{problem: p, names: names, lower: lower, upper: upper, mu: mu}
}

func (f *penaltyFunc) assignment(x []float64) expr.Assignment {
	a := make(expr.Assignment, len(f.names))
	for i, name := range f.names {
		a[name] = x[i]
	}
	return a
}

// violation returns how far v sits outside [lower, upper], signed: negative
// below the interval, positive above, zero inside. Infinite bounds never
// contribute.
func violation(v, lower, upper float64) float64 {
	if v < lower {
		return v - lower
	}
	if v > upper {
		return v - upper
	}
	return 0
}

// value evaluates the penalized objective at x.
func (f *penaltyFunc) value(x []float64) (float64, error) {
	a := f.assignment(x)
	total, err := f.problem.Objective().Expr().Eval(a)
	if err != nil {
		return 0, err
	}
	for _, c := range f.problem.Constraints() {
		g, err := c.Expr().Eval(a)
		if err != nil {
			return 0, err
		}
		if v := violation(g, c.Lower(), c.Upper()); v != 0 {
			total += f.mu * v * v
		}
	}
	for i := range x {
		if v := violation(x[i], f.lower[i], f.upper[i]); v != 0 {
			total += f.mu * v * v
		}
	}
	return total, nil
}

// gradient writes the penalized objective's gradient at x into dst.
func (f *penaltyFunc) gradient(dst, x []float64) error {
	a := f.assignment(x)

	index := make(map[string]int, len(f.names))
	for i, name := range f.names {
		index[name] = i
	}
	for i := range dst {
		dst[i] = 0
	}

	objGrad, err := f.problem.Objective().Expr().Gradient(a)
	if err != nil {
		return err
	}
	for name, partial := range objGrad {
		dst[index[name]] += partial
	}

	for _, c := range f.problem.Constraints() {
		g, err := c.Expr().Eval(a)
		if err != nil {
			return err
		}
		v := violation(g, c.Lower(), c.Upper())
		if v == 0 {
			continue
		}
		cGrad, err := c.Expr().Gradient(a)
		if err != nil {
			return err
		}
		// d/dx mu*v(g)^2 = 2*mu*v * dg/dx
		for name, partial := range cGrad {
			dst[index[name]] += 2 * f.mu * v * partial
		}
	}

	for i := range x {
		if v := violation(x[i], f.lower[i], f.upper[i]); v != 0 {
			dst[i] += 2 * f.mu * v
		}
	}
	return nil
}

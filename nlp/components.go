package nlp

import "github.com/quibbleopt/quibble/expr"

// ComponentOption tags a variable, constraint, or objective with optional
// metadata at registration time.
type ComponentOption func(*componentMeta)

type componentMeta struct {
	name  string
	group string
}

// WithName overrides the auto-generated component name.
func WithName(name string) ComponentOption {
	return func(m *componentMeta) { m.name = name }
}

// WithGroup assigns the component to a named group, usable later to filter
// result values.
func WithGroup(group string) ComponentOption {
	return func(m *componentMeta) { m.group = group }
}

func applyComponentOptions(opts []ComponentOption) componentMeta {
	var m componentMeta
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Variable is a registered decision variable: a unique name, its bounds, and
// the expression handle callers compose with. Variables belong to exactly
// one Problem and live for as long as it does.
type Variable struct {
	name  string
	group string
	lower float64
	upper float64
	ref   *expr.Expr
}

func (v *Variable) Name() string    { return v.name }
func (v *Variable) Group() string   { return v.group }
func (v *Variable) Lower() float64  { return v.lower }
func (v *Variable) Upper() float64  { return v.upper }
func (v *Variable) Ref() *expr.Expr { return v.ref }

// Constraint pairs an expression with the closed interval its value must
// stay within at a feasible point. Either end may be infinite.
type Constraint struct {
	name  string
	group string
	lower float64
	upper float64
	expr  *expr.Expr
}

func (c *Constraint) Name() string     { return c.name }
func (c *Constraint) Group() string    { return c.group }
func (c *Constraint) Lower() float64   { return c.lower }
func (c *Constraint) Upper() float64   { return c.upper }
func (c *Constraint) Expr() *expr.Expr { return c.expr }

// Objective is the expression minimized by the solver.
type Objective struct {
	name  string
	group string
	expr  *expr.Expr
}

func (o *Objective) Name() string     { return o.name }
func (o *Objective) Group() string    { return o.group }
func (o *Objective) Expr() *expr.Expr { return o.expr }

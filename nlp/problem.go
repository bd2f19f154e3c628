// Package nlp provides the problem model for nonlinear programs: decision
// variables with bounds, expression constraints over bounded intervals, and
// a single objective to minimize. A populated Problem is consumed read-only
// by the trial engine in nlp/solver.
package nlp

import (
	"fmt"

	"github.com/quibbleopt/quibble/expr"
	"github.com/quibbleopt/quibble/internal/logging"
)

// DefaultEpsilon is the feasibility tolerance used when none is configured.
const DefaultEpsilon = 1e-6

// Problem aggregates the declared structure of a nonlinear program.
// Insertion order of variables defines the solver's input vector layout.
// Add operations are atomic: they validate fully before mutating, so a
// failed call leaves the problem unchanged.
type Problem struct {
	variables   []*Variable
	varIndex    map[string]int
	constraints []*Constraint
	objective   *Objective

	epsilon float64
	seed    int64
	verbose bool
	logger  *logging.Logger
}

// Option configures a Problem at construction time.
type Option func(*Problem)

// WithVerbose enables per-operation progress logging. Observability only;
// solve semantics are unaffected.
func WithVerbose(v bool) Option {
	return func(p *Problem) { p.verbose = v }
}

// WithEpsilon sets the numeric feasibility tolerance.
func WithEpsilon(eps float64) Option {
	return func(p *Problem) { p.epsilon = eps }
}

// WithSeed fixes the random seed used for trial sampling. Zero means derive
// a seed from the clock at solve time.
func WithSeed(seed int64) Option {
	return func(p *Problem) { p.seed = seed }
}

// WithLogger routes verbose output through the given logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Problem) { p.logger = l }
}

// New constructs an empty problem.
func New(opts ...Option) *Problem {
	p := &Problem{
		varIndex: make(map[string]int),
		epsilon:  DefaultEpsilon,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddDecisionVariable registers a bounded decision variable and returns the
// expression handle used to build constraints and objectives over it.
// Bounds may be infinite on either side.
func (p *Problem) AddDecisionVariable(name string, lower, upper float64, opts ...ComponentOption) (*expr.Expr, error) {
	if lower > upper {
		return nil, &InvalidBoundsError{Component: fmt.Sprintf("variable %q", name), Lower: lower, Upper: upper}
	}
	if _, exists := p.varIndex[name]; exists {
		return nil, &DuplicateNameError{Name: name}
	}
	meta := applyComponentOptions(opts)

	v := &Variable{
		name:  name,
		group: meta.group,
		lower: lower,
		upper: upper,
		ref:   expr.NewVar(name),
	}
	p.varIndex[name] = len(p.variables)
	p.variables = append(p.variables, v)

	p.logVerbose("added decision variable", map[string]interface{}{
		"name":  name,
		"lower": lower,
		"upper": upper,
	})
	return v.ref, nil
}

// AddConstraint requires e to stay within [lower, upper] at a feasible
// point. Unnamed constraints are auto-named Constraint_N in registration
// order.
func (p *Problem) AddConstraint(e *expr.Expr, lower, upper float64, opts ...ComponentOption) error {
	meta := applyComponentOptions(opts)
	name := meta.name
	if name == "" {
		name = fmt.Sprintf("Constraint_%d", len(p.constraints)+1)
	}
	if lower > upper {
		return &InvalidBoundsError{Component: fmt.Sprintf("constraint %q", name), Lower: lower, Upper: upper}
	}
	if err := p.checkKnownVars(e, fmt.Sprintf("constraint %q", name)); err != nil {
		return err
	}

	p.constraints = append(p.constraints, &Constraint{
		name:  name,
		group: meta.group,
		lower: lower,
		upper: upper,
		expr:  e,
	})

	p.logVerbose("added constraint", map[string]interface{}{
		"name":       name,
		"expression": e.String(),
		"lower":      lower,
		"upper":      upper,
	})
	return nil
}

// AddObjective sets the expression to minimize. A problem holds at most one
// objective.
func (p *Problem) AddObjective(e *expr.Expr, opts ...ComponentOption) error {
	if p.objective != nil {
		return &DuplicateObjectiveError{Existing: p.objective.name}
	}
	meta := applyComponentOptions(opts)
	name := meta.name
	if name == "" {
		name = "Objective_1"
	}
	if err := p.checkKnownVars(e, fmt.Sprintf("objective %q", name)); err != nil {
		return err
	}

	p.objective = &Objective{name: name, group: meta.group, expr: e}

	p.logVerbose("added objective", map[string]interface{}{
		"name":       name,
		"expression": e.String(),
	})
	return nil
}

func (p *Problem) checkKnownVars(e *expr.Expr, component string) error {
	for _, name := range e.Vars() {
		if _, ok := p.varIndex[name]; !ok {
			return &UnknownVariableError{Component: component, Variable: name}
		}
	}
	return nil
}

// Variables returns the registered decision variables in insertion order.
func (p *Problem) Variables() []*Variable { return p.variables }

// Constraints returns the registered constraints in insertion order.
func (p *Problem) Constraints() []*Constraint { return p.constraints }

// Objective returns the objective, or nil if none has been set.
func (p *Problem) Objective() *Objective { return p.objective }

// VariableIndex returns the vector position of the named variable.
func (p *Problem) VariableIndex(name string) (int, bool) {
	i, ok := p.varIndex[name]
	return i, ok
}

// Epsilon returns the feasibility tolerance.
func (p *Problem) Epsilon() float64 { return p.epsilon }

// Seed returns the configured random seed (0 = unseeded).
func (p *Problem) Seed() int64 { return p.seed }

// Verbose reports whether per-operation logging is enabled.
func (p *Problem) Verbose() bool { return p.verbose }

// Logger returns the configured logger, or nil.
func (p *Problem) Logger() *logging.Logger { return p.logger }

// Bounds returns the per-variable lower and upper bound vectors in layout
// order.
func (p *Problem) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(p.variables))
	upper = make([]float64, len(p.variables))
	for i, v := range p.variables {
		lower[i] = v.lower
		upper[i] = v.upper
	}
	return lower, upper
}

func (p *Problem) logVerbose(msg string, fields map[string]interface{}) {
	if !p.verbose || p.logger == nil {
		return
	}
	p.logger.Info(msg, fields)
}

package nlp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quibbleopt/quibble/expr"
)

func TestAddDecisionVariable(t *testing.T) {
	p := New()

	x, err := p.AddDecisionVariable("x", -1, 1)
	require.NoError(t, err)
	require.NotNil(t, x)
	assert.Equal(t, "x", x.VarName())

	_, err = p.AddDecisionVariable("y", math.Inf(-1), math.Inf(1))
	require.NoError(t, err)

	vars := p.Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "x", vars[0].Name())
	assert.Equal(t, -1.0, vars[0].Lower())
	assert.Equal(t, 1.0, vars[0].Upper())
	assert.True(t, math.IsInf(vars[1].Lower(), -1))
	assert.True(t, math.IsInf(vars[1].Upper(), 1))

	i, ok := p.VariableIndex("y")
	require.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestAddDecisionVariableInvalidBounds(t *testing.T) {
	p := New()

	_, err := p.AddDecisionVariable("x", 2, 1)
	var bounds *InvalidBoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, 2.0, bounds.Lower)
	assert.Equal(t, 1.0, bounds.Upper)

	// The failed add must leave no trace.
	assert.Empty(t, p.Variables())
	_, ok := p.VariableIndex("x")
	assert.False(t, ok)
}

func TestAddDecisionVariableDuplicate(t *testing.T) {
	p := New()

	_, err := p.AddDecisionVariable("x", 0, 1)
	require.NoError(t, err)

	_, err = p.AddDecisionVariable("x", -5, 5)
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "x", dup.Name)

	// Original registration is untouched.
	require.Len(t, p.Variables(), 1)
	assert.Equal(t, 0.0, p.Variables()[0].Lower())
}

func TestAddConstraint(t *testing.T) {
	p := New()
	x, err := p.AddDecisionVariable("x", -10, 10)
	require.NoError(t, err)

	require.NoError(t, p.AddConstraint(x.Pow(2), 0, 25))
	require.NoError(t, p.AddConstraint(x.AddConst(1), -5, math.Inf(1), WithName("shifted"), WithGroup("linear")))

	cs := p.Constraints()
	require.Len(t, cs, 2)
	assert.Equal(t, "Constraint_1", cs[0].Name())
	assert.Equal(t, "shifted", cs[1].Name())
	assert.Equal(t, "linear", cs[1].Group())
}

func TestAddConstraintAutoNaming(t *testing.T) {
	p := New()
	x, err := p.AddDecisionVariable("x", 0, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.AddConstraint(x, 0, 1))
	}

	cs := p.Constraints()
	assert.Equal(t, "Constraint_1", cs[0].Name())
	assert.Equal(t, "Constraint_2", cs[1].Name())
	assert.Equal(t, "Constraint_3", cs[2].Name())
}

func TestAddConstraintErrors(t *testing.T) {
	p := New()
	x, err := p.AddDecisionVariable("x", 0, 1)
	require.NoError(t, err)

	err = p.AddConstraint(x, 3, 2)
	var bounds *InvalidBoundsError
	require.ErrorAs(t, err, &bounds)

	err = p.AddConstraint(x.Add(expr.NewVar("ghost")), 0, 1)
	var unknown *UnknownVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Variable)

	// Both failures left the constraint list unchanged.
	assert.Empty(t, p.Constraints())
}

func TestAddObjective(t *testing.T) {
	p := New()
	x, err := p.AddDecisionVariable("x", -1, 1)
	require.NoError(t, err)

	require.NoError(t, p.AddObjective(x.Pow(2)))
	require.NotNil(t, p.Objective())
	assert.Equal(t, "Objective_1", p.Objective().Name())

	err = p.AddObjective(x)
	var dup *DuplicateObjectiveError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Objective_1", dup.Existing)
}

func TestAddObjectiveUnknownVariable(t *testing.T) {
	p := New()

	err := p.AddObjective(expr.NewVar("x"))
	var unknown *UnknownVariableError
	require.ErrorAs(t, err, &unknown)
	assert.Nil(t, p.Objective())
}

func TestBounds(t *testing.T) {
	p := New()
	_, err := p.AddDecisionVariable("a", -1, 2)
	require.NoError(t, err)
	_, err = p.AddDecisionVariable("b", 0, math.Inf(1))
	require.NoError(t, err)

	lower, upper := p.Bounds()
	assert.Equal(t, []float64{-1, 0}, lower)
	assert.Equal(t, 2.0, upper[0])
	assert.True(t, math.IsInf(upper[1], 1))
}

func TestOptions(t *testing.T) {
	p := New(WithEpsilon(1e-3), WithSeed(42), WithVerbose(true))

	assert.Equal(t, 1e-3, p.Epsilon())
	assert.Equal(t, int64(42), p.Seed())
	assert.True(t, p.Verbose())

	assert.Equal(t, DefaultEpsilon, New().Epsilon())
}

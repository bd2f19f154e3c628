package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testResult() *Result {
	return &Result{
		Status:    StatusFeasible,
		Objective: -3,
		Trial:     2,
		TrialsRun: 5,
		Variables: []ComponentResult{
			{Name: "x", Group: "position", Value: 1.0, UpperActive: true},
			{Name: "y", Group: "position", Value: 0.25},
			{Name: "m", Group: "mass", Value: 80.0, LowerActive: true},
		},
		Constraints: []ComponentResult{
			{Name: "Constraint_1", Value: 10.0, UpperActive: true},
			{Name: "clearance", Group: "safety", Value: 0.5},
		},
	}
}

func TestResultAssignment(t *testing.T) {
	a := testResult().Assignment()
	assert.Equal(t, 1.0, a["x"])
	assert.Equal(t, 0.25, a["y"])
	assert.Equal(t, 80.0, a["m"])
	assert.Len(t, a, 3)
}

func TestResultGroupFiltering(t *testing.T) {
	r := testResult()

	all := r.VariableValues("")
	assert.Len(t, all, 3)

	position := r.VariableValues("position")
	assert.Equal(t, map[string]float64{"x": 1.0, "y": 0.25}, position)

	safety := r.ConstraintValues("safety")
	assert.Equal(t, map[string]float64{"clearance": 0.5}, safety)

	assert.Empty(t, r.VariableValues("no-such-group"))
}

func TestResultActiveComponents(t *testing.T) {
	r := testResult()

	assert.Equal(t, []string{"Constraint_1"}, r.ActiveConstraints())
	assert.Equal(t, []string{"x", "m"}, r.ActiveVariableBounds())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "feasible", StatusFeasible.String())
	assert.Equal(t, "infeasible", StatusInfeasible.String())
	assert.Equal(t, "no_trials_succeeded", StatusNoTrialsSucceeded.String())
	assert.Equal(t, "unknown", Status(99).String())
}

package nlp

import "github.com/quibbleopt/quibble/expr"

// ActivationEpsilon is the distance within which a component's value counts
// as sitting on one of its bounds.
const ActivationEpsilon = 1e-5

// Status reports whether a solve produced a feasible assignment.
type Status int

const (
	// StatusInfeasible means trials completed but none produced an
	// assignment satisfying every constraint within tolerance.
	StatusInfeasible Status = iota
	// StatusFeasible means at least one trial converged to a feasible
	// assignment; the result carries the best of them.
	StatusFeasible
	// StatusNoTrialsSucceeded means every trial aborted before producing a
	// usable point (domain errors, diverged searches, panics).
	StatusNoTrialsSucceeded
)

func (s Status) String() string {
	switch s {
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusNoTrialsSucceeded:
		return "no_trials_succeeded"
	}
	return "unknown"
}

// ComponentResult records the solved value of a single variable or
// constraint, together with which of its bounds (if any) is active.
type ComponentResult struct {
	Name        string  `json:"name"`
	Group       string  `json:"group,omitempty"`
	Value       float64 `json:"value"`
	LowerActive bool    `json:"lower_active"`
	UpperActive bool    `json:"upper_active"`
}

// Result is the outcome of a solve: the best feasible assignment found
// across all trials, or StatusInfeasible when no trial succeeded.
type Result struct {
	Status    Status  `json:"status"`
	Objective float64 `json:"objective"`
	// Trial is the index of the winning trial; -1 when infeasible.
	Trial int `json:"trial"`
	// TrialsRun and TrialsFailed count completed and aborted trials.
	TrialsRun    int `json:"trials_run"`
	TrialsFailed int `json:"trials_failed"`

	Variables   []ComponentResult `json:"variables"`
	Constraints []ComponentResult `json:"constraints"`
}

// Assignment returns the solved variable values as an expression assignment,
// reusable for further evaluation against the original graphs.
func (r *Result) Assignment() expr.Assignment {
	a := make(expr.Assignment, len(r.Variables))
	for _, v := range r.Variables {
		a[v.Name] = v.Value
	}
	return a
}

// VariableValues returns solved variable values keyed by name. When group is
// non-empty only variables tagged with that group are included.
func (r *Result) VariableValues(group string) map[string]float64 {
	return valuesByGroup(r.Variables, group)
}

// ConstraintValues returns solved constraint expression values keyed by
// name, optionally filtered by group.
func (r *Result) ConstraintValues(group string) map[string]float64 {
	return valuesByGroup(r.Constraints, group)
}

func valuesByGroup(components []ComponentResult, group string) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range components {
		if group != "" && c.Group != group {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

// ActiveConstraints returns the names of constraints whose value sits on a
// bound at the solution.
func (r *Result) ActiveConstraints() []string {
	var names []string
	for _, c := range r.Constraints {
		if c.LowerActive || c.UpperActive {
			names = append(names, c.Name)
		}
	}
	return names
}

// ActiveVariableBounds returns the names of variables clamped against a
// bound at the solution.
func (r *Result) ActiveVariableBounds() []string {
	var names []string
	for _, v := range r.Variables {
		if v.LowerActive || v.UpperActive {
			names = append(names, v.Name)
		}
	}
	return names
}

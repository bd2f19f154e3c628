package nlp

import "fmt"

// DuplicateNameError reports an attempt to register a second decision
// variable under a name that is already taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("decision variable %q already registered", e.Name)
}

// InvalidBoundsError reports a lower bound above the upper bound.
type InvalidBoundsError struct {
	Component string
	Lower     float64
	Upper     float64
}

func (e *InvalidBoundsError) Error() string {
	return fmt.Sprintf("%s: lower bound %g exceeds upper bound %g", e.Component, e.Lower, e.Upper)
}

// UnknownVariableError reports an expression that references a variable the
// problem has never registered.
type UnknownVariableError struct {
	Component string
	Variable  string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("%s references unknown variable %q", e.Component, e.Variable)
}

// DuplicateObjectiveError reports a second AddObjective call on a problem
// that already has one.
type DuplicateObjectiveError struct {
	Existing string
}

func (e *DuplicateObjectiveError) Error() string {
	return fmt.Sprintf("objective %q already set", e.Existing)
}

// EmptyProblemError reports a solve attempt on a problem with no objective.
type EmptyProblemError struct{}

func (e *EmptyProblemError) Error() string {
	return "problem has no objective"
}

// InvalidTrialCountError reports a solve request with fewer than one trial.
type InvalidTrialCountError struct {
	Trials int
}

func (e *InvalidTrialCountError) Error() string {
	return fmt.Sprintf("trial count must be at least 1, got %d", e.Trials)
}

package expr

import "fmt"

// UnboundVariableError reports an evaluation against an assignment that is
// missing a value for a referenced variable.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("variable %q has no value in assignment", e.Name)
}

// DomainError reports an operation applied outside its mathematical domain,
// such as division by zero or the logarithm of a non-positive number.
type DomainError struct {
	Op     Op
	Detail string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

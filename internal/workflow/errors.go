package workflow

import "fmt"

// DeclarationError reports a structural or graph-acyclicity violation in a
// workflow-type declaration. A rejected declaration never enters the
// registry.
type DeclarationError struct {
	Workflow  string
	Attribute string
	Reason    string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("workflow '%s': attribute '%s': %s", e.Workflow, e.Attribute, e.Reason)
}

// LookupError reports a query for a workflow-type name that was never
// registered. For submission logic this is fatal: it has nothing to
// schedule against.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("workflow type '%s' is not registered", e.Name)
}

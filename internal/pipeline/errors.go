package pipeline

import "fmt"

// BuildError reports a structurally malformed pipeline: an unknown module, a
// forward or dangling reference, a duplicate output handle, or an unbound
// required input. Build errors are detected when the pipeline is
// constructed, before any execution.
type BuildError struct {
	Pipeline  string
	StepIndex int // -1 for pipeline-level problems
	Module    string
	Reason    string
}

func (e *BuildError) Error() string {
	if e.StepIndex < 0 {
		return fmt.Sprintf("pipeline '%s': %s", e.Pipeline, e.Reason)
	}
	return fmt.Sprintf("pipeline '%s' step %d (module '%s'): %s", e.Pipeline, e.StepIndex, e.Module, e.Reason)
}

// MissingHandleError reports an input reference that could not be resolved
// during execution. With step order fixed at build time this only happens
// when the job inputs do not contain a referenced handle.
type MissingHandleError struct {
	Pipeline  string
	StepIndex int
	Module    string
	Input     string
	Ref       string
}

func (e *MissingHandleError) Error() string {
	return fmt.Sprintf("pipeline '%s' step %d (module '%s'): input '%s' references '%s' which is not available",
		e.Pipeline, e.StepIndex, e.Module, e.Input, e.Ref)
}

// ExecutionError reports the step at which a job aborted and the underlying
// cause. The job's value store keeps everything produced before the failure.
type ExecutionError struct {
	Pipeline  string
	StepIndex int
	Module    string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline '%s' aborted at step %d (module '%s'): %v", e.Pipeline, e.StepIndex, e.Module, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

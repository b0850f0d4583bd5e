package pipeline

import (
	"context"
	"fmt"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/invoker"
)

// Execute runs a built pipeline against the given job inputs and returns the
// populated value store.
//
// Steps run strictly in declared order, one at a time. On the first failure
// the job aborts: there are no retries, and the returned value store keeps
// everything produced up to the failing step so the caller can inspect it.
// The returned error names the failing step index, module and cause.
func Execute(ctx context.Context, p *Pipeline, jobInputs map[string]handle.Value, diagnostics bool) (*ValueStore, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", p.Name)
	logger.Debug("Starting pipeline execution.", "steps", len(p.Steps), "diagnostics", diagnostics)

	store := NewValueStore()

	for _, step := range p.Steps {
		stepLogger := logger.With("step", step.Index, "module", step.Module.Name)
		stepLogger.Debug("Resolving step inputs.")

		args := make(map[string]handle.Value, len(step.Bindings))
		for _, inputName := range step.Module.InputOrder {
			binding := step.Bindings[inputName]
			value, err := resolve(p, step, inputName, binding, jobInputs, store)
			if err != nil {
				return store, err
			}
			args[inputName] = value
		}

		stepLogger.Debug("Invoking module.")
		outputs, err := invoker.Invoke(ctx, step.Module, step.Handler, args, diagnostics)
		if err != nil {
			stepLogger.Error("Step failed.", "error", err)
			return store, &ExecutionError{Pipeline: p.Name, StepIndex: step.Index, Module: step.Module.Name, Err: err}
		}

		for _, outputName := range step.Module.OutputOrder {
			if err := store.Put(outputName, outputs[outputName]); err != nil {
				return store, &ExecutionError{Pipeline: p.Name, StepIndex: step.Index, Module: step.Module.Name, Err: err}
			}
		}
		stepLogger.Debug("Step finished.", "outputs", step.Module.OutputOrder)
	}

	logger.Debug("Pipeline execution finished.", "handles", store.Len())
	return store, nil
}

// resolve produces the concrete value for one input binding.
func resolve(
	p *Pipeline,
	step *Step,
	inputName string,
	binding Binding,
	jobInputs map[string]handle.Value,
	store *ValueStore,
) (handle.Value, error) {
	switch {
	case binding.Literal != nil:
		return handle.NewScalar(*binding.Literal), nil

	case binding.JobInput != "":
		value, ok := jobInputs[binding.JobInput]
		if !ok {
			return nil, &MissingHandleError{
				Pipeline:  p.Name,
				StepIndex: step.Index,
				Module:    step.Module.Name,
				Input:     inputName,
				Ref:       "input." + binding.JobInput,
			}
		}
		return value, nil

	case binding.Ref != nil:
		value, ok := store.Get(binding.Ref.Handle)
		if !ok {
			// Step order is fixed at build time, so this indicates a
			// malformed pipeline rather than an ordering problem.
			return nil, &MissingHandleError{
				Pipeline:  p.Name,
				StepIndex: step.Index,
				Module:    step.Module.Name,
				Input:     inputName,
				Ref:       fmt.Sprintf("step %d handle '%s'", binding.Ref.StepIndex, binding.Ref.Handle),
			}
		}
		return value, nil

	default:
		return nil, &ExecutionError{Pipeline: p.Name, StepIndex: step.Index, Module: step.Module.Name,
			Err: fmt.Errorf("input '%s' has an empty binding", inputName)}
	}
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/model"
	"github.com/ak/cellpipe/internal/registry"
)

// Build validates a pipeline specification against the module registry and
// produces an executable plan. Every structural defect is reported as a
// BuildError naming the offending step.
func Build(ctx context.Context, reg *registry.Registry, spec *model.PipelineSpec) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building pipeline.", "pipeline", spec.Name, "steps", len(spec.Steps))

	if len(spec.Steps) == 0 {
		return nil, &BuildError{Pipeline: spec.Name, StepIndex: -1, Reason: "pipeline has no steps"}
	}

	p := &Pipeline{Name: spec.Name}
	// stepByName maps instance names to indices of steps built so far, which
	// makes a reference to a later (or misspelled) step unresolvable.
	stepByName := make(map[string]int)
	// producer tracks which step declared each output handle; a second
	// declaration of the same handle name is rejected, never shadowed.
	producer := make(map[string]int)

	for i, stepSpec := range spec.Steps {
		desc, ok := reg.Descriptor(stepSpec.Module)
		if !ok {
			return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module, Reason: "unknown module"}
		}
		handler, ok := reg.Handler(desc)
		if !ok {
			return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module,
				Reason: fmt.Sprintf("handler '%s' is not registered", desc.Lifecycle.OnRun)}
		}
		if stepSpec.Name == "" {
			return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module, Reason: "step has no instance name"}
		}
		if _, dup := stepByName[stepSpec.Name]; dup {
			return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module,
				Reason: fmt.Sprintf("duplicate step instance name '%s'", stepSpec.Name)}
		}

		for argName := range stepSpec.Arguments {
			if _, declared := desc.Inputs[argName]; !declared {
				return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module,
					Reason: fmt.Sprintf("argument '%s' is not a declared input", argName)}
			}
		}

		step := &Step{
			Index:    i,
			Name:     stepSpec.Name,
			Module:   desc,
			Handler:  handler,
			Bindings: make(map[string]Binding, len(desc.InputOrder)),
		}

		for _, inputName := range desc.InputOrder {
			inputDef := desc.Inputs[inputName]
			expr, bound := stepSpec.Arguments[inputName]
			if !bound {
				if inputDef.Required() {
					return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module,
						Reason: fmt.Sprintf("required input '%s' is not bound", inputName)}
				}
				step.Bindings[inputName] = Binding{Literal: inputDef.Default}
				continue
			}
			binding, err := bindExpression(spec.Name, i, stepSpec.Module, inputName, inputDef, expr, p, stepByName)
			if err != nil {
				return nil, err
			}
			step.Bindings[inputName] = binding
		}

		for _, outputName := range desc.OutputOrder {
			if prev, dup := producer[outputName]; dup {
				return nil, &BuildError{Pipeline: spec.Name, StepIndex: i, Module: stepSpec.Module,
					Reason: fmt.Sprintf("output handle '%s' already produced by step %d", outputName, prev)}
			}
			producer[outputName] = i
		}

		stepByName[stepSpec.Name] = i
		p.Steps = append(p.Steps, step)
	}

	logger.Debug("Pipeline built.", "pipeline", p.Name)
	return p, nil
}

// bindExpression classifies one argument expression as a literal, a job
// input reference (input.<name>) or a step output reference
// (step.<instance>.<handle>) and validates it against the input definition.
func bindExpression(
	pipelineName string,
	stepIndex int,
	moduleName string,
	inputName string,
	inputDef model.InputDefinition,
	expr hcl.Expression,
	built *Pipeline,
	stepByName map[string]int,
) (Binding, error) {
	buildErr := func(reason string) (Binding, error) {
		return Binding{}, &BuildError{Pipeline: pipelineName, StepIndex: stepIndex, Module: moduleName, Reason: reason}
	}

	if len(expr.Variables()) == 0 {
		// Literal binding: only scalar inputs can be written inline.
		if inputDef.Kind != handle.KindScalar {
			return buildErr(fmt.Sprintf("input '%s' has kind '%s' and cannot be bound to a literal", inputName, inputDef.Kind))
		}
		val, diags := expr.Value(nil)
		if diags.HasErrors() {
			return buildErr(fmt.Sprintf("input '%s': %s", inputName, diags))
		}
		converted, err := model.ConvertScalar(val, inputDef.ScalarType)
		if err != nil {
			return buildErr(fmt.Sprintf("input '%s': literal is not a valid %s: %v", inputName, inputDef.ScalarType.FriendlyName(), err))
		}
		return Binding{Literal: &converted}, nil
	}

	traversal, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() {
		return buildErr(fmt.Sprintf("input '%s' must be a literal, input.<name> or step.<instance>.<handle>", inputName))
	}

	switch traversal.RootName() {
	case "input":
		if len(traversal) != 2 {
			return buildErr(fmt.Sprintf("input '%s': job input references have the form input.<name>", inputName))
		}
		attr, ok := traversal[1].(hcl.TraverseAttr)
		if !ok {
			return buildErr(fmt.Sprintf("input '%s': job input references have the form input.<name>", inputName))
		}
		return Binding{JobInput: attr.Name}, nil

	case "step":
		if len(traversal) != 3 {
			return buildErr(fmt.Sprintf("input '%s': step references have the form step.<instance>.<handle>", inputName))
		}
		instanceAttr, ok1 := traversal[1].(hcl.TraverseAttr)
		handleAttr, ok2 := traversal[2].(hcl.TraverseAttr)
		if !ok1 || !ok2 {
			return buildErr(fmt.Sprintf("input '%s': step references have the form step.<instance>.<handle>", inputName))
		}
		// Only steps built before this one are present, so forward and
		// self references fail here.
		refIndex, ok := stepByName[instanceAttr.Name]
		if !ok {
			return buildErr(fmt.Sprintf("input '%s' references step '%s' which does not occur earlier in the pipeline", inputName, instanceAttr.Name))
		}
		refStep := built.Steps[refIndex]
		outputDef, ok := refStep.Module.Output(handleAttr.Name)
		if !ok {
			return buildErr(fmt.Sprintf("input '%s' references output '%s' which step '%s' (module '%s') does not declare",
				inputName, handleAttr.Name, instanceAttr.Name, refStep.Module.Name))
		}
		if outputDef.Kind != inputDef.Kind {
			return buildErr(fmt.Sprintf("input '%s' has kind '%s' but referenced output '%s' has kind '%s'",
				inputName, inputDef.Kind, handleAttr.Name, outputDef.Kind))
		}
		if inputDef.Kind == handle.KindScalar && !outputDef.ScalarType.Equals(inputDef.ScalarType) {
			return buildErr(fmt.Sprintf("input '%s' expects scalar type '%s' but referenced output '%s' has type '%s'",
				inputName, inputDef.ScalarType.FriendlyName(), handleAttr.Name, outputDef.ScalarType.FriendlyName()))
		}
		return Binding{Ref: &OutputRef{StepIndex: refIndex, Handle: handleAttr.Name}}, nil

	default:
		return buildErr(fmt.Sprintf("input '%s': unknown reference root '%s'", inputName, traversal.RootName()))
	}
}

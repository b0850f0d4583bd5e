// Package pipeline turns a parsed pipeline specification into a validated,
// executable plan and runs it step by step against a per-job value store.
//
// All structural validation happens at build time: unknown modules, unbound
// required inputs, references to later steps and duplicate output handles
// are rejected before anything executes. Execution itself is strictly
// sequential and ordered; later steps may depend on earlier steps' outputs
// and some modules mutate buffers in place, so within one job there is
// nothing to parallelize safely. Reproducibility wins over speed here.
package pipeline

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/ak/cellpipe/internal/model"
	"github.com/ak/cellpipe/internal/registry"
)

// OutputRef points at an output handle of an earlier step.
type OutputRef struct {
	StepIndex int
	Handle    string
}

// Binding resolves one declared input of a step. Exactly one field is set.
type Binding struct {
	// Literal is a scalar literal written in the pipeline file (or a
	// manifest default).
	Literal *cty.Value
	// JobInput names a value the job must supply at execution time.
	JobInput string
	// Ref points at the output of an earlier step.
	Ref *OutputRef
}

// Step is one validated module invocation within a pipeline.
type Step struct {
	Index    int
	Name     string
	Module   *model.ModuleDescriptor
	Handler  *registry.RegisteredHandler
	Bindings map[string]Binding
}

// Pipeline is an ordered, validated sequence of steps constituting one job's
// processing plan. Pipelines are immutable once built and safe to execute
// many times, each execution owning its own value store.
type Pipeline struct {
	Name  string
	Steps []*Step
}

// OutputHandles returns the union of all declared output handle names across
// the pipeline's steps, in step-then-declaration order. After a successful
// execution the value store's key set equals exactly this list.
func (p *Pipeline) OutputHandles() []string {
	var handles []string
	for _, step := range p.Steps {
		handles = append(handles, step.Module.OutputOrder...)
	}
	return handles
}

// Package schema holds the raw HCL decoding structures for every file format
// the engine understands: module manifests, pipeline descriptors and
// workflow-type declarations. The structures here map one-to-one onto HCL
// blocks; package model turns them into validated, format-agnostic values.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Pipeline Descriptor Structures ---

// StepArgs represents the content of the 'arguments' block within a step.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// PipelineStep represents a `step` block inside a pipeline. The first label
// names the module to invoke, the second names this invocation so later
// steps can reference its outputs.
type PipelineStep struct {
	Module    string    `hcl:"module,label"`
	Name      string    `hcl:"instance_name,label"`
	Arguments *StepArgs `hcl:"arguments,block"`
}

// PipelineBlock represents a top-level `pipeline` block.
type PipelineBlock struct {
	Name  string          `hcl:"name,label"`
	Steps []*PipelineStep `hcl:"step,block"`
}

// PipelineConfig represents the top-level structure of a pipeline file.
type PipelineConfig struct {
	Pipelines []*PipelineBlock `hcl:"pipeline,block"`
	Body      hcl.Body         `hcl:",remain"`
}

// --- Workflow Declaration Structures ---

// StageDeps represents the content of the 'dependencies' block within a
// stage: one attribute per step, listing the step names it depends on.
type StageDeps struct {
	Body hcl.Body `hcl:",remain"`
}

// WorkflowStage represents a `stage` block inside a workflow declaration.
type WorkflowStage struct {
	Name         string     `hcl:"name,label"`
	Mode         string     `hcl:"mode"`
	Steps        []string   `hcl:"steps"`
	DependsOn    []string   `hcl:"depends_on,optional"`
	Dependencies *StageDeps `hcl:"dependencies,block"`
}

// WorkflowBlock represents a top-level `workflow` block declaring one
// workflow type.
type WorkflowBlock struct {
	Name   string           `hcl:"name,label"`
	Stages []*WorkflowStage `hcl:"stage,block"`
}

// WorkflowConfig represents the top-level structure of a workflow file.
type WorkflowConfig struct {
	Workflows []*WorkflowBlock `hcl:"workflow,block"`
	Body      hcl.Body         `hcl:",remain"`
}

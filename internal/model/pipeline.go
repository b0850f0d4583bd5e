package model

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/schema"
)

// PipelineSpec is the parsed but not yet validated form of a pipeline file:
// an ordered list of module invocations with raw argument expressions.
// Validation against module descriptors happens when the pipeline is built.
type PipelineSpec struct {
	Name  string
	Steps []*PipelineStepSpec
}

// PipelineStepSpec is one step record of a pipeline descriptor.
type PipelineStepSpec struct {
	// Module names the module descriptor to invoke.
	Module string
	// Name is the instance name later steps use to reference outputs.
	Name string
	// Arguments holds one raw expression per bound input handle. Expressions
	// are either literals, job-input references (input.<name>) or step-output
	// references (step.<instance>.<handle>).
	Arguments map[string]hcl.Expression
}

// ParsePipelineFile decodes an HCL file containing one or more 'pipeline'
// blocks.
func ParsePipelineFile(ctx context.Context, hclFile *hcl.File, filePath string) ([]*PipelineSpec, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing pipeline specs from file", "file_path", filePath)

	var allDiags hcl.Diagnostics
	if hclFile == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &schema.PipelineConfig{}
	diags := gohcl.DecodeBody(hclFile.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	specs := make([]*PipelineSpec, 0, len(root.Pipelines))
	for _, block := range root.Pipelines {
		spec := &PipelineSpec{Name: block.Name}
		for _, rawStep := range block.Steps {
			step := &PipelineStepSpec{
				Module:    rawStep.Module,
				Name:      rawStep.Name,
				Arguments: make(map[string]hcl.Expression),
			}
			if rawStep.Arguments != nil {
				attrs, attrDiags := rawStep.Arguments.Body.JustAttributes()
				allDiags = append(allDiags, attrDiags...)
				for name, attr := range attrs {
					step.Arguments[name] = attr.Expr
				}
			}
			spec.Steps = append(spec.Steps, step)
		}
		specs = append(specs, spec)
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}

	logger.Debug("Successfully parsed pipeline specs", "count", len(specs))
	return specs, nil
}

// SinglePipeline returns the only pipeline in a file, or an error when the
// file declares none or several.
func SinglePipeline(specs []*PipelineSpec) (*PipelineSpec, error) {
	if len(specs) != 1 {
		return nil, fmt.Errorf("expected exactly one pipeline block, found %d", len(specs))
	}
	return specs[0], nil
}

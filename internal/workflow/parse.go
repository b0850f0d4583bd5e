package workflow

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/schema"
)

// ParseWorkflowFile decodes an HCL file containing one or more 'workflow'
// blocks into raw declarations. Structural validation happens later, at
// registration.
func ParseWorkflowFile(ctx context.Context, hclFile *hcl.File, filePath string) ([]*Declaration, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing workflow declarations from file", "file_path", filePath)

	var allDiags hcl.Diagnostics
	if hclFile == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &schema.WorkflowConfig{}
	diags := gohcl.DecodeBody(hclFile.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	decls := make([]*Declaration, 0, len(root.Workflows))
	for _, block := range root.Workflows {
		decl := &Declaration{
			Name:           block.Name,
			StageModes:     make(map[string]Mode),
			StepsPerStage:  make(map[string][]string),
			InterStageDeps: make(map[string][]string),
			IntraStageDeps: make(map[string][]string),
		}
		for _, stage := range block.Stages {
			decl.Stages = append(decl.Stages, stage.Name)
			decl.StageModes[stage.Name] = Mode(stage.Mode)
			decl.StepsPerStage[stage.Name] = stage.Steps
			decl.InterStageDeps[stage.Name] = stage.DependsOn

			if stage.Dependencies == nil {
				continue
			}
			attrs, attrDiags := stage.Dependencies.Body.JustAttributes()
			allDiags = append(allDiags, attrDiags...)
			for stepName, attr := range attrs {
				var deps []string
				evalDiags := gohcl.DecodeExpression(attr.Expr, nil, &deps)
				allDiags = append(allDiags, evalDiags...)
				if evalDiags.HasErrors() {
					continue
				}
				decl.IntraStageDeps[stepName] = deps
			}
		}
		decls = append(decls, decl)
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}

	logger.Debug("Successfully parsed workflow declarations", "count", len(decls))
	return decls, nil
}

// Package model provides the format-agnostic, validated in-memory
// representation of every declaration the engine consumes: module
// descriptors and pipeline specifications.
//
// Why a separate model package?
//
// Declarations arrive as HCL, but nothing downstream of parsing should care.
// The registry validates descriptors against compiled Go handlers, and the
// pipeline builder validates step bindings against descriptors; both work
// exclusively on the structures in this package. This keeps the parsing
// surface in one place and lets tests construct declarations directly.
package model

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/ak/cellpipe/internal/ctxlog"
)

// Lifecycle maps a module's run event to a registered Go handler name.
type Lifecycle struct {
	OnRun string
}

// ModuleDescriptor is the declared input/output contract of one processing
// module. Descriptors are defined once at startup and never mutated.
type ModuleDescriptor struct {
	Name        string
	Version     string
	Language    string
	Description string
	Lifecycle   Lifecycle

	// Inputs and Outputs are keyed by handle name. InputOrder and
	// OutputOrder preserve declaration order for deterministic reporting.
	Inputs      map[string]InputDefinition
	InputOrder  []string
	Outputs     map[string]OutputDefinition
	OutputOrder []string
}

// Input returns the input definition for a handle name.
func (d *ModuleDescriptor) Input(name string) (InputDefinition, bool) {
	def, ok := d.Inputs[name]
	return def, ok
}

// Output returns the output definition for a handle name.
func (d *ModuleDescriptor) Output(name string) (OutputDefinition, bool) {
	def, ok := d.Outputs[name]
	return def, ok
}

// NewModules is a factory function for creating module descriptors from a
// parsed manifest file.
func NewModules(ctx context.Context, hclFile *hcl.File, filePath string) ([]*ModuleDescriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Creating module descriptors", "file_path", filePath)

	modules, diags := ParseModuleFile(ctx, hclFile, filePath)
	if diags.HasErrors() {
		return nil, diags
	}
	return modules, nil
}

// moduleRootSchema defines the top-level structure of a manifest file,
// expecting one or more 'module' blocks.
type moduleRootSchema struct {
	Modules []*hclModule `hcl:"module,block"`
}

// hclModule represents a single 'module' block for initial decoding.
type hclModule struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// moduleBodySchema defines the schema for the body of a 'module' block.
var moduleBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "version"},
		{Name: "language"},
		{Name: "description"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "lifecycle"},
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

// lifecycleBodySchema defines the schema for the body of a 'lifecycle' block.
var lifecycleBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "on_run", Required: true},
	},
}

// ParseModuleFile decodes an HCL file containing one or more 'module' blocks.
func ParseModuleFile(ctx context.Context, hclFile *hcl.File, filePath string) ([]*ModuleDescriptor, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing module descriptors from file", "file_path", filePath)

	var allDiags hcl.Diagnostics
	if hclFile == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &moduleRootSchema{}
	diags := gohcl.DecodeBody(hclFile.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	modules := make([]*ModuleDescriptor, 0, len(root.Modules))
	for _, parsed := range root.Modules {
		bodyContent, contentDiags := parsed.Body.Content(moduleBodySchema)
		allDiags = append(allDiags, contentDiags...)
		if contentDiags.HasErrors() {
			continue // Skip this module but keep parsing the others.
		}

		descriptor := &ModuleDescriptor{
			Name: parsed.Name,
		}

		for attrName, target := range map[string]*string{
			"version":     &descriptor.Version,
			"language":    &descriptor.Language,
			"description": &descriptor.Description,
		} {
			if attr, exists := bodyContent.Attributes[attrName]; exists {
				exprDiags := gohcl.DecodeExpression(attr.Expr, nil, target)
				allDiags = append(allDiags, exprDiags...)
			}
		}

		var lcDiags hcl.Diagnostics
		descriptor.Lifecycle, lcDiags = parseLifecycle(parsed.Name, bodyContent.Blocks)
		allDiags = append(allDiags, lcDiags...)

		var inputDiags hcl.Diagnostics
		descriptor.Inputs, descriptor.InputOrder, inputDiags = parseInputs(bodyContent.Blocks)
		allDiags = append(allDiags, inputDiags...)

		var outputDiags hcl.Diagnostics
		descriptor.Outputs, descriptor.OutputOrder, outputDiags = parseOutputs(bodyContent.Blocks)
		allDiags = append(allDiags, outputDiags...)

		modules = append(modules, descriptor)
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}

	logger.Debug("Successfully parsed module descriptors", "count", len(modules))
	return modules, nil
}

// parseLifecycle decodes the single 'lifecycle' block of a module.
func parseLifecycle(moduleName string, blocks hcl.Blocks) (Lifecycle, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	lcBlocks := blocks.OfType("lifecycle")
	if len(lcBlocks) != 1 {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing lifecycle block",
			Detail:   fmt.Sprintf("Module '%s' must declare exactly one lifecycle block, found %d.", moduleName, len(lcBlocks)),
		})
		return Lifecycle{}, diags
	}

	bodyContent, contentDiags := lcBlocks[0].Body.Content(lifecycleBodySchema)
	diags = append(diags, contentDiags...)
	if contentDiags.HasErrors() {
		return Lifecycle{}, diags
	}

	var lc Lifecycle
	evalDiags := gohcl.DecodeExpression(bodyContent.Attributes["on_run"].Expr, nil, &lc.OnRun)
	diags = append(diags, evalDiags...)
	return lc, diags
}

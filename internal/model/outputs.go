package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/ak/cellpipe/internal/handle"
)

// OutputDefinition defines a single output handle of a module.
type OutputDefinition struct {
	Name        string
	Kind        handle.Kind
	ScalarType  cty.Type
	Description string
}

// outputBodySchema is the HCL schema for the body of an 'output' block.
var outputBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "kind", Required: true},
		{Name: "type"},
		{Name: "description"},
	},
}

// parseOutputs finds and decodes all 'output' blocks from a module body.
func parseOutputs(blocks hcl.Blocks) (map[string]OutputDefinition, []string, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	outputs := make(map[string]OutputDefinition)
	var order []string

	for _, block := range blocks.OfType("output") {
		outputName := block.Labels[0]

		if _, exists := outputs[outputName]; exists {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate output definition",
				Detail:   fmt.Sprintf("An output named '%s' has already been defined.", outputName),
				Subject:  &block.DefRange,
			})
			continue
		}

		bodyContent, contentDiags := block.Body.Content(outputBodySchema)
		diags = append(diags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		kind, kindDiags := decodeKind(bodyContent.Attributes["kind"])
		diags = append(diags, kindDiags...)
		if kindDiags.HasErrors() {
			continue
		}

		def := OutputDefinition{Name: outputName, Kind: kind}

		if descAttr, exists := bodyContent.Attributes["description"]; exists {
			evalDiags := gohcl.DecodeExpression(descAttr.Expr, nil, &def.Description)
			diags = append(diags, evalDiags...)
		}

		typeAttr, hasType := bodyContent.Attributes["type"]
		if kind == handle.KindScalar {
			if !hasType {
				missingItemRange := block.Body.MissingItemRange()
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Missing 'type' attribute",
					Detail:   fmt.Sprintf("Scalar output '%s' must declare a type (string, number or bool).", outputName),
					Subject:  &missingItemRange,
				})
				continue
			}
			ctyType, typeDiags := typeexpr.TypeConstraint(typeAttr.Expr)
			diags = append(diags, typeDiags...)
			if typeDiags.HasErrors() {
				continue
			}
			if !ctyType.IsPrimitiveType() {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid scalar type",
					Detail:   fmt.Sprintf("Scalar output '%s' must be string, number or bool, got %s.", outputName, ctyType.FriendlyName()),
					Subject:  typeAttr.Expr.Range().Ptr(),
				})
				continue
			}
			def.ScalarType = ctyType
		} else if hasType {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unexpected 'type' attribute",
				Detail:   fmt.Sprintf("Output '%s' has kind '%s'; only scalar outputs take a type.", outputName, kind),
				Subject:  typeAttr.Expr.Range().Ptr(),
			})
			continue
		}

		outputs[outputName] = def
		order = append(order, outputName)
	}

	return outputs, order, diags
}

// ConvertScalar coerces a literal value to the declared scalar type.
func ConvertScalar(v cty.Value, t cty.Type) (cty.Value, error) {
	return convert.Convert(v, t)
}

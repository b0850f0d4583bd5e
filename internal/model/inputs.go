package model

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/ak/cellpipe/internal/handle"
)

// InputDefinition defines a single input handle of a module.
//
// Every input has a kind. Scalar inputs additionally carry a cty type
// constraint so literal bindings can be checked at pipeline build time, and
// may carry a default value; an input without a default is required.
type InputDefinition struct {
	Name        string
	Kind        handle.Kind
	ScalarType  cty.Type
	Description string
	Default     *cty.Value
}

// Required reports whether a pipeline step must bind this input.
func (d InputDefinition) Required() bool { return d.Default == nil }

// inputBodySchema is the HCL schema for the body of an 'input' block.
var inputBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "kind", Required: true},
		{Name: "type"},
		{Name: "description"},
		{Name: "default"},
	},
}

// parseInputs finds and decodes all 'input' blocks from a module body.
// Declaration order is preserved in the returned slice of names.
func parseInputs(blocks hcl.Blocks) (map[string]InputDefinition, []string, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	inputs := make(map[string]InputDefinition)
	var order []string

	for _, block := range blocks.OfType("input") {
		inputName := block.Labels[0]

		if _, exists := inputs[inputName]; exists {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate input definition",
				Detail:   fmt.Sprintf("An input named '%s' has already been defined.", inputName),
				Subject:  &block.DefRange,
			})
			continue
		}

		bodyContent, contentDiags := block.Body.Content(inputBodySchema)
		diags = append(diags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		kind, kindDiags := decodeKind(bodyContent.Attributes["kind"])
		diags = append(diags, kindDiags...)
		if kindDiags.HasErrors() {
			continue
		}

		def := InputDefinition{Name: inputName, Kind: kind}

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
					Detail:   fmt.Sprintf("Scalar input '%s' must declare a type (string, number or bool).", inputName),
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
					Detail:   fmt.Sprintf("Scalar input '%s' must be string, number or bool, got %s.", inputName, ctyType.FriendlyName()),
					Subject:  typeAttr.Expr.Range().Ptr(),
				})
				continue
			}
			def.ScalarType = ctyType
		} else if hasType {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unexpected 'type' attribute",
				Detail:   fmt.Sprintf("Input '%s' has kind '%s'; only scalar inputs take a type.", inputName, kind),
				Subject:  typeAttr.Expr.Range().Ptr(),
			})
			continue
		}

		if defaultAttr, exists := bodyContent.Attributes["default"]; exists {
			if kind != handle.KindScalar {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid default value",
					Detail:   fmt.Sprintf("Input '%s' has kind '%s'; only scalar inputs take a default.", inputName, kind),
					Subject:  defaultAttr.Expr.Range().Ptr(),
				})
				continue
			}
			// A nil eval context is used because defaults must be literals.
			val, valDiags := defaultAttr.Expr.Value(nil)
			diags = append(diags, valDiags...)
			if valDiags.HasErrors() {
				continue
			}
			converted, err := ConvertScalar(val, def.ScalarType)
			if err != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid default value type",
					Detail:   fmt.Sprintf("The default for '%s' is not compatible with its type '%s'.", inputName, def.ScalarType.FriendlyName()),
					Subject:  defaultAttr.Expr.Range().Ptr(),
				})
				continue
			}
			def.Default = &converted
		}

		inputs[inputName] = def
		order = append(order, inputName)
	}

	return inputs, order, diags
}

// decodeKind evaluates a manifest 'kind' attribute into a handle.Kind.
func decodeKind(attr *hcl.Attribute) (handle.Kind, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var raw string
	evalDiags := gohcl.DecodeExpression(attr.Expr, nil, &raw)
	diags = append(diags, evalDiags...)
	if evalDiags.HasErrors() {
		return "", diags
	}
	kind, err := handle.ParseKind(raw)
	if err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unknown handle kind",
			Detail:   err.Error(),
			Subject:  attr.Expr.Range().Ptr(),
		})
		return "", diags
	}
	return kind, diags
}

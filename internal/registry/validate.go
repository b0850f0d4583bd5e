package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/model"
	"github.com/ak/cellpipe/internal/table"
)

// DescriptorMismatchError reports a module whose manifest does not match its
// Go implementation. A mismatched module is unusable in any pipeline until
// fixed.
type DescriptorMismatchError struct {
	Module   string
	Problems []string
}

func (e *DescriptorMismatchError) Error() string {
	return fmt.Sprintf("module '%s': descriptor mismatch:\n- %s", e.Module, strings.Join(e.Problems, "\n- "))
}

// Validate performs a strict parity check between every descriptor and the
// Go handler that implements it: each declared handle must have exactly one
// matching struct field, in both directions, with a compatible Go type. The
// check runs once at load time so a drifted module fails fast, before any
// job executes.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	for _, name := range r.Modules() {
		def := r.descriptors[name]
		handler, ok := r.handlers[def.Lifecycle.OnRun]
		if !ok {
			errs = append(errs, &DescriptorMismatchError{
				Module:   name,
				Problems: []string{fmt.Sprintf("handler '%s' is not registered", def.Lifecycle.OnRun)},
			})
			continue
		}

		var problems []string
		problems = append(problems, checkInputs(def, handler.InputType)...)
		problems = append(problems, checkOutputs(def, handler.OutputType)...)
		problems = append(problems, checkHandlerShape(handler)...)

		if len(problems) > 0 {
			errs = append(errs, &DescriptorMismatchError{Module: name, Problems: problems})
			continue
		}
		logger.Debug("Module descriptor validated.", "module", name)
	}

	return errors.Join(errs...)
}

// taggedFields collects the exported, pipe-tagged fields of a struct type.
func taggedFields(structType reflect.Type) map[string]reflect.StructField {
	fields := make(map[string]reflect.StructField)
	if structType == nil {
		return fields
	}
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("pipe"), ",")[0]
		if tag != "" && tag != "-" {
			fields[tag] = field
		}
	}
	return fields
}

// checkInputs verifies the bijection and type compatibility between declared
// input handles and the handler's input struct fields.
func checkInputs(def *model.ModuleDescriptor, structType reflect.Type) []string {
	var problems []string

	if structType == nil || structType.Kind() != reflect.Struct {
		if len(def.Inputs) > 0 {
			problems = append(problems, "manifest declares inputs, but Go handler has no input struct")
		}
		return problems
	}

	goFields := taggedFields(structType)
	for tag := range goFields {
		if _, ok := def.Inputs[tag]; !ok {
			problems = append(problems, fmt.Sprintf("Go struct has field for input '%s' which is not declared in manifest", tag))
		}
	}
	for _, name := range def.InputOrder {
		field, ok := goFields[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("manifest declares input '%s' which is not found in Go struct", name))
			continue
		}
		in := def.Inputs[name]
		if msg := checkKindCompat(name, in.Kind, in.ScalarType, field.Type); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

// checkOutputs verifies the bijection and type compatibility between declared
// output handles and the handler's output struct fields.
func checkOutputs(def *model.ModuleDescriptor, structType reflect.Type) []string {
	var problems []string

	if structType == nil || structType.Kind() != reflect.Struct {
		if len(def.Outputs) > 0 {
			problems = append(problems, "manifest declares outputs, but Go handler has no output struct")
		}
		return problems
	}

	goFields := taggedFields(structType)
	for tag := range goFields {
		if _, ok := def.Outputs[tag]; !ok {
			problems = append(problems, fmt.Sprintf("Go struct has field for output '%s' which is not declared in manifest", tag))
		}
	}
	for _, name := range def.OutputOrder {
		field, ok := goFields[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("manifest declares output '%s' which is not found in Go struct", name))
			continue
		}
		out := def.Outputs[name]
		if msg := checkKindCompat(name, out.Kind, out.ScalarType, field.Type); msg != "" {
			problems = append(problems, msg)
		}
	}
	return problems
}

// checkKindCompat reports a problem string when a Go field type cannot carry
// a handle of the declared kind, or "" when it can.
func checkKindCompat(name string, kind handle.Kind, scalarType cty.Type, fieldType reflect.Type) string {
	switch kind {
	case handle.KindImage:
		if fieldType != reflect.TypeOf((*image.Buffer)(nil)) {
			return fmt.Sprintf("handle '%s': kind 'image' requires *image.Buffer, Go field has %s", name, fieldType)
		}
	case handle.KindLabelImage:
		if fieldType != reflect.TypeOf((*labelimage.Image)(nil)) {
			return fmt.Sprintf("handle '%s': kind 'label_image' requires *labelimage.Image, Go field has %s", name, fieldType)
		}
	case handle.KindTable:
		if fieldType != reflect.TypeOf((*table.Table)(nil)) {
			return fmt.Sprintf("handle '%s': kind 'measurement_table' requires *table.Table, Go field has %s", name, fieldType)
		}
	case handle.KindFigure:
		if fieldType != reflect.TypeOf((*handle.Figure)(nil)) {
			return fmt.Sprintf("handle '%s': kind 'figure' requires *handle.Figure, Go field has %s", name, fieldType)
		}
	case handle.KindScalar:
		if msg := checkScalarCompat(name, scalarType, fieldType); msg != "" {
			return msg
		}
	default:
		return fmt.Sprintf("handle '%s': unknown kind '%s'", name, kind)
	}
	return ""
}

// checkScalarCompat maps declared scalar cty types onto acceptable Go field
// types: string -> string, bool -> bool, number -> int or float64.
func checkScalarCompat(name string, scalarType cty.Type, fieldType reflect.Type) string {
	switch scalarType {
	case cty.String:
		if fieldType.Kind() != reflect.String {
			return fmt.Sprintf("handle '%s': scalar type 'string' requires a string field, Go field has %s", name, fieldType)
		}
	case cty.Bool:
		if fieldType.Kind() != reflect.Bool {
			return fmt.Sprintf("handle '%s': scalar type 'bool' requires a bool field, Go field has %s", name, fieldType)
		}
	case cty.Number:
		if fieldType.Kind() != reflect.Int && fieldType.Kind() != reflect.Float64 {
			return fmt.Sprintf("handle '%s': scalar type 'number' requires an int or float64 field, Go field has %s", name, fieldType)
		}
	default:
		return fmt.Sprintf("handle '%s': unsupported scalar type '%s'", name, scalarType.FriendlyName())
	}
	return ""
}

// checkHandlerShape verifies the handler function has the expected
// signature: func(context.Context, *Call, *Input) (*Output, error).
// The second parameter's concrete type belongs to the invoker and is checked
// there; here we only pin the arity, the context, and the input/output
// struct pointers.
func checkHandlerShape(handler *RegisteredHandler) []string {
	var problems []string
	fnType := reflect.TypeOf(handler.Fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return []string{"handler Fn is not a function"}
	}
	if fnType.NumIn() != 3 || fnType.NumOut() != 2 {
		return []string{fmt.Sprintf("handler must be func(ctx, call, in) (out, error), got %s", fnType)}
	}
	ctxType := reflect.TypeOf((*context.Context)(nil)).Elem()
	if !fnType.In(0).Implements(ctxType) && fnType.In(0) != ctxType {
		problems = append(problems, fmt.Sprintf("handler first parameter must be context.Context, got %s", fnType.In(0)))
	}
	if handler.InputType != nil && fnType.In(2) != reflect.PointerTo(handler.InputType) {
		problems = append(problems, fmt.Sprintf("handler input parameter must be *%s, got %s", handler.InputType, fnType.In(2)))
	}
	if handler.OutputType != nil && fnType.Out(0) != reflect.PointerTo(handler.OutputType) {
		problems = append(problems, fmt.Sprintf("handler return value must be *%s, got %s", handler.OutputType, fnType.Out(0)))
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if fnType.Out(1) != errType {
		problems = append(problems, fmt.Sprintf("handler second return value must be error, got %s", fnType.Out(1)))
	}
	return problems
}

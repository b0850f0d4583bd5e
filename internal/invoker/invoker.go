// Package invoker dispatches a resolved module invocation to the Go handler
// backing it. It owns the marshalling boundary: resolved handle values go in,
// a record matching the module's declared outputs comes out. The executor
// never sees a handler function or a struct field; the invoker hides how a
// module implementation happens to be written.
//
// Failures split in two: a marshalling problem on either side is an
// InvocationError, while an error returned by the module's own logic is a
// ProcessingError carrying the original cause. The engine never reinterprets
// the latter.
package invoker

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/model"
	"github.com/ak/cellpipe/internal/registry"
)

// Call carries per-invocation context into a module handler, alongside the
// resolved input struct.
type Call struct {
	// Module is the name of the module being invoked.
	Module string
	// Diagnostics reports whether the caller asked for diagnostic figures.
	// Handlers may skip producing figure outputs when it is false.
	Diagnostics bool
}

// InvocationError reports a failure to marshal values across the module
// boundary, in either direction. It is distinct from a failure of the
// module's own logic.
type InvocationError struct {
	Module string
	Reason string
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invoking module '%s': %s: %v", e.Module, e.Reason, e.Err)
	}
	return fmt.Sprintf("invoking module '%s': %s", e.Module, e.Reason)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ProcessingError wraps an error raised by a module's own processing logic.
// The original cause is attached unmodified.
type ProcessingError struct {
	Module string
	Err    error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("module '%s' failed: %v", e.Module, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Invoke calls the handler backing a module descriptor with the resolved
// arguments and returns a value per declared output handle.
//
// A declared figure output is always present in the result: when diagnostics
// were not requested, or the handler produced none, it is the empty sentinel.
// Every other declared output must be filled by the handler.
func Invoke(
	ctx context.Context,
	desc *model.ModuleDescriptor,
	handler *registry.RegisteredHandler,
	args map[string]handle.Value,
	diagnostics bool,
) (outputs map[string]handle.Value, err error) {
	logger := ctxlog.FromContext(ctx).With("module", desc.Name)

	inputStruct, err := marshalInputs(desc, handler, args)
	if err != nil {
		return nil, err
	}

	call := &Call{Module: desc.Name, Diagnostics: diagnostics}
	fnVal := reflect.ValueOf(handler.Fn)
	if fnVal.Type().In(1) != reflect.TypeOf(call) {
		return nil, &InvocationError{
			Module: desc.Name,
			Reason: fmt.Sprintf("handler second parameter must be *invoker.Call, got %s", fnVal.Type().In(1)),
		}
	}

	// A panicking handler fails its own job, not the whole process.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Module handler panicked.", "panic", r)
			outputs = nil
			err = &ProcessingError{Module: desc.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	logger.Debug("Calling module handler.", "handler", desc.Lifecycle.OnRun)
	results := fnVal.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(call),
		reflect.ValueOf(inputStruct),
	})

	if errResult := results[1].Interface(); errResult != nil {
		return nil, &ProcessingError{Module: desc.Name, Err: errResult.(error)}
	}

	return unmarshalOutputs(desc, results[0], diagnostics)
}

// fieldByTag finds the struct field carrying a given pipe tag.
func fieldByTag(structType reflect.Type, tag string) (reflect.StructField, bool) {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if strings.Split(field.Tag.Get("pipe"), ",")[0] == tag {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// marshalInputs fills the handler's input struct from resolved handle values.
func marshalInputs(desc *model.ModuleDescriptor, handler *registry.RegisteredHandler, args map[string]handle.Value) (any, error) {
	inputStruct := handler.NewInput()
	structVal := reflect.ValueOf(inputStruct).Elem()

	for name := range args {
		if _, declared := desc.Inputs[name]; !declared {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("argument '%s' is not a declared input", name)}
		}
	}

	for _, name := range desc.InputOrder {
		def := desc.Inputs[name]
		value, ok := args[name]
		if !ok {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("no value for declared input '%s'", name)}
		}
		field, ok := fieldByTag(handler.InputType, name)
		if !ok {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("input struct has no field for '%s'", name)}
		}
		fieldVal := structVal.FieldByIndex(field.Index)

		if def.Kind == handle.KindScalar {
			scalar, ok := value.(handle.Scalar)
			if !ok {
				return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("input '%s' expects a scalar, got %s", name, value.HandleKind())}
			}
			if err := gocty.FromCtyValue(scalar.V, fieldVal.Addr().Interface()); err != nil {
				return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("decoding scalar input '%s'", name), Err: err}
			}
			continue
		}

		if value.HandleKind() != def.Kind {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("input '%s' expects kind '%s', got '%s'", name, def.Kind, value.HandleKind())}
		}
		rv := reflect.ValueOf(value)
		if !rv.Type().AssignableTo(fieldVal.Type()) {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("input '%s': cannot assign %s to field of type %s", name, rv.Type(), fieldVal.Type())}
		}
		fieldVal.Set(rv)
	}

	return inputStruct, nil
}

// unmarshalOutputs turns the handler's output struct into a record matching
// the declared outputs exactly.
func unmarshalOutputs(desc *model.ModuleDescriptor, result reflect.Value, diagnostics bool) (map[string]handle.Value, error) {
	outputs := make(map[string]handle.Value, len(desc.OutputOrder))

	if result.Kind() == reflect.Pointer && result.IsNil() {
		if len(desc.OutputOrder) > 0 {
			return nil, &InvocationError{Module: desc.Name, Reason: "handler returned nil output struct"}
		}
		return outputs, nil
	}
	structVal := result.Elem()

	for _, name := range desc.OutputOrder {
		def := desc.Outputs[name]
		field, ok := fieldByTag(structVal.Type(), name)
		if !ok {
			return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("output struct has no field for '%s'", name)}
		}
		fieldVal := structVal.FieldByIndex(field.Index)

		switch def.Kind {
		case handle.KindFigure:
			// Figure outputs keep a type-stable contract: never an omitted
			// key, always at least the empty sentinel.
			fig, _ := fieldVal.Interface().(*handle.Figure)
			if !diagnostics || fig == nil {
				fig = handle.EmptyFigure()
			}
			outputs[name] = fig
		case handle.KindScalar:
			ctyVal, err := gocty.ToCtyValue(fieldVal.Interface(), def.ScalarType)
			if err != nil {
				return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("encoding scalar output '%s'", name), Err: err}
			}
			outputs[name] = handle.NewScalar(ctyVal)
		default:
			value, ok := fieldVal.Interface().(handle.Value)
			if !ok || fieldVal.IsNil() {
				return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("handler returned no value for declared output '%s'", name)}
			}
			if value.HandleKind() != def.Kind {
				return nil, &InvocationError{Module: desc.Name, Reason: fmt.Sprintf("output '%s' declares kind '%s', handler produced '%s'", name, def.Kind, value.HandleKind())}
			}
			outputs[name] = value
		}
	}

	return outputs, nil
}

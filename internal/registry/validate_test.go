package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/labelimage"
)

type validInput struct {
	Image *image.Buffer `pipe:"image"`
	Level float64       `pipe:"level"`
}

type validOutput struct {
	Mask *labelimage.Image `pipe:"mask"`
	Plot *handle.Figure    `pipe:"plot"`
}

const validManifest = `
module "threshold" {
	lifecycle { on_run = "OnRunThreshold" }

	input "image" { kind = "image" }
	input "level" {
		kind = "scalar"
		type = number
	}

	output "mask" { kind = "label_image" }
	output "plot" { kind = "figure" }
}
`

// callStub stands in for the invoker call context; the validator pins the
// handler arity but leaves the second parameter to the invoker.
type callStub struct{}

func validHandler() *RegisteredHandler {
	return &RegisteredHandler{
		NewInput:   func() any { return new(validInput) },
		InputType:  reflect.TypeOf(validInput{}),
		OutputType: reflect.TypeOf(validOutput{}),
		Fn: func(ctx context.Context, call *callStub, in *validInput) (*validOutput, error) {
			return &validOutput{}, nil
		},
	}
}

func TestValidate_MatchingModulePasses(t *testing.T) {
	t.Parallel()

	r := New()
	r.MustLoadManifest(validManifest, "manifest.hcl")
	r.RegisterHandler("OnRunThreshold", validHandler())

	require.NoError(t, r.Validate(context.Background()))
}

func TestValidate_Mismatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(h *RegisteredHandler)
		problem string
	}{
		{
			name: "manifest input missing from struct",
			mutate: func(h *RegisteredHandler) {
				type input struct {
					Image *image.Buffer `pipe:"image"`
				}
				h.NewInput = func() any { return new(input) }
				h.InputType = reflect.TypeOf(input{})
				h.Fn = func(ctx context.Context, call *callStub, in *input) (*validOutput, error) {
					return nil, nil
				}
			},
			problem: "declares input 'level' which is not found in Go struct",
		},
		{
			name: "struct field not declared in manifest",
			mutate: func(h *RegisteredHandler) {
				type input struct {
					Image *image.Buffer `pipe:"image"`
					Level float64       `pipe:"level"`
					Extra string        `pipe:"extra"`
				}
				h.NewInput = func() any { return new(input) }
				h.InputType = reflect.TypeOf(input{})
				h.Fn = func(ctx context.Context, call *callStub, in *input) (*validOutput, error) {
					return nil, nil
				}
			},
			problem: "field for input 'extra' which is not declared",
		},
		{
			name: "wrong Go type for image handle",
			mutate: func(h *RegisteredHandler) {
				type input struct {
					Image *labelimage.Image `pipe:"image"`
					Level float64           `pipe:"level"`
				}
				h.NewInput = func() any { return new(input) }
				h.InputType = reflect.TypeOf(input{})
				h.Fn = func(ctx context.Context, call *callStub, in *input) (*validOutput, error) {
					return nil, nil
				}
			},
			problem: "kind 'image' requires *image.Buffer",
		},
		{
			name: "wrong Go type for scalar handle",
			mutate: func(h *RegisteredHandler) {
				type input struct {
					Image *image.Buffer `pipe:"image"`
					Level string        `pipe:"level"`
				}
				h.NewInput = func() any { return new(input) }
				h.InputType = reflect.TypeOf(input{})
				h.Fn = func(ctx context.Context, call *callStub, in *input) (*validOutput, error) {
					return nil, nil
				}
			},
			problem: "scalar type 'number' requires an int or float64 field",
		},
		{
			name: "manifest output missing from struct",
			mutate: func(h *RegisteredHandler) {
				type output struct {
					Mask *labelimage.Image `pipe:"mask"`
				}
				h.OutputType = reflect.TypeOf(output{})
				h.Fn = func(ctx context.Context, call *callStub, in *validInput) (*output, error) {
					return nil, nil
				}
			},
			problem: "declares output 'plot' which is not found in Go struct",
		},
		{
			name: "handler with wrong arity",
			mutate: func(h *RegisteredHandler) {
				h.Fn = func(ctx context.Context, in *validInput) (*validOutput, error) {
					return nil, nil
				}
			},
			problem: "handler must be func(ctx, call, in) (out, error)",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := New()
			r.MustLoadManifest(validManifest, "manifest.hcl")
			h := validHandler()
			tc.mutate(h)
			r.RegisterHandler("OnRunThreshold", h)

			err := r.Validate(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.problem)
		})
	}
}

func TestValidate_UnregisteredHandler(t *testing.T) {
	t.Parallel()

	r := New()
	r.MustLoadManifest(validManifest, "manifest.hcl")

	err := r.Validate(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "handler 'OnRunThreshold' is not registered")
}

func TestRegisterHandler_DuplicatePanics(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterHandler("OnRunX", validHandler())
	require.Panics(t, func() { r.RegisterHandler("OnRunX", validHandler()) })
}

func TestAddDescriptor_DuplicateRejected(t *testing.T) {
	t.Parallel()

	r := New()
	r.MustLoadManifest(validManifest, "manifest.hcl")
	require.Panics(t, func() { r.MustLoadManifest(validManifest, "manifest.hcl") })
}

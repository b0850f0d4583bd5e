// Package label implements the built-in 'label' module: connected-component
// labeling of a binary mask.
package label

import (
	"context"
	_ "embed"
	"reflect"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the label handler.
type Input struct {
	Mask *labelimage.Image `pipe:"mask"`
}

// Output defines the values the label handler produces.
type Output struct {
	Labels *labelimage.Image `pipe:"label_image"`
	Count  int               `pipe:"count"`
}

// OnRunLabel assigns a distinct id to every face-connected foreground
// component of the mask. Ids follow scan order, so the result is
// deterministic for a given mask.
func OnRunLabel(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	labels := labelimage.Components(in.Mask)
	count := len(labels.Labels())
	ctxlog.FromContext(ctx).Debug("Labeled mask.", "objects", count)
	return &Output{Labels: labels, Count: count}, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/label/manifest.hcl")
	r.RegisterHandler("OnRunLabel", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunLabel,
	})
}

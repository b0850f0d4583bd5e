// Package smooth implements the built-in 'smooth' module: a mean filter over
// a square in-plane window.
package smooth

import (
	"context"
	_ "embed"
	"fmt"
	"reflect"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/registry"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the smooth handler.
type Input struct {
	Image  *image.Buffer `pipe:"image"`
	Radius int           `pipe:"radius"`
}

// Output defines the values the smooth handler produces.
type Output struct {
	Smoothed *image.Buffer `pipe:"smoothed_image"`
}

// OnRunSmooth replaces each pixel with the mean of the (2r+1)-wide square
// window around it, clamped at the image border. Planes of a volumetric
// image are smoothed independently.
func OnRunSmooth(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	if in.Radius < 0 {
		return nil, fmt.Errorf("radius must be non-negative, got %d", in.Radius)
	}
	ctxlog.FromContext(ctx).Debug("Smoothing image.", "radius", in.Radius)

	src := in.Image
	out := image.New3D(src.Width, src.Height, src.Depth)
	r := in.Radius
	for z := 0; z < src.Depth; z++ {
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				sum, n := 0.0, 0
				for dy := -r; dy <= r; dy++ {
					ny := y + dy
					if ny < 0 || ny >= src.Height {
						continue
					}
					for dx := -r; dx <= r; dx++ {
						nx := x + dx
						if nx < 0 || nx >= src.Width {
							continue
						}
						sum += src.At(nx, ny, z)
						n++
					}
				}
				out.Set(x, y, z, sum/float64(n))
			}
		}
	}
	return &Output{Smoothed: out}, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/smooth/manifest.hcl")
	r.RegisterHandler("OnRunSmooth", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunSmooth,
	})
}

// Package measure implements the built-in 'measure' module: per-object shape
// and intensity features.
package measure

import (
	"context"
	_ "embed"
	"fmt"
	"reflect"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
	"github.com/ak/cellpipe/internal/table"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the measure handler.
type Input struct {
	Labels *labelimage.Image `pipe:"label_image"`
	Image  *image.Buffer     `pipe:"image"`
}

// Output defines the values the measure handler produces.
type Output struct {
	Measurements *table.Table `pipe:"measurements"`
}

// OnRunMeasure computes area, centroid and mean intensity for every object in
// the label image. Rows are emitted in ascending object-id order.
func OnRunMeasure(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	if in.Image.Width != in.Labels.Width || in.Image.Height != in.Labels.Height || in.Image.Depth != in.Labels.Depth {
		return nil, fmt.Errorf("label image is %dx%dx%d but intensity image is %dx%dx%d",
			in.Labels.Width, in.Labels.Height, in.Labels.Depth,
			in.Image.Width, in.Image.Height, in.Image.Depth)
	}

	type accum struct {
		n          int
		sx, sy, sz int
		intensity  float64
	}
	acc := make(map[int]*accum)
	for z := 0; z < in.Labels.Depth; z++ {
		for y := 0; y < in.Labels.Height; y++ {
			for x := 0; x < in.Labels.Width; x++ {
				id := in.Labels.At(x, y, z)
				if id == 0 {
					continue
				}
				a, ok := acc[id]
				if !ok {
					a = &accum{}
					acc[id] = a
				}
				a.n++
				a.sx += x
				a.sy += y
				a.sz += z
				a.intensity += in.Image.At(x, y, z)
			}
		}
	}

	t := table.New("area", "centroid_x", "centroid_y", "centroid_z", "mean_intensity")
	for _, id := range in.Labels.Labels() {
		a := acc[id]
		n := float64(a.n)
		if err := t.Append(id, n, float64(a.sx)/n, float64(a.sy)/n, float64(a.sz)/n, a.intensity/n); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("Measured objects.", "objects", t.Len())
	return &Output{Measurements: t}, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/measure/manifest.hcl")
	r.RegisterHandler("OnRunMeasure", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunMeasure,
	})
}

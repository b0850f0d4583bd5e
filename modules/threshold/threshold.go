// Package threshold implements the built-in 'threshold' module: it turns an
// intensity image into a binary mask by a fixed cutoff.
package threshold

import (
	"context"
	_ "embed"
	"reflect"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the threshold handler.
type Input struct {
	Image *image.Buffer `pipe:"image"`
	Level float64       `pipe:"level"`
}

// Output defines the values the threshold handler produces.
type Output struct {
	Mask *labelimage.Image `pipe:"mask"`
	Plot *handle.Figure    `pipe:"threshold_plot"`
}

// OnRunThreshold marks every pixel at or above the cutoff as foreground (1)
// and everything else as background (0).
func OnRunThreshold(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	src := in.Image
	mask := labelimage.New3D(src.Width, src.Height, src.Depth)
	foreground := 0
	for i, v := range src.Pix {
		if v >= in.Level {
			mask.Pix[i] = 1
			foreground++
		}
	}
	ctxlog.FromContext(ctx).Debug("Thresholded image.", "level", in.Level, "foreground_pixels", foreground)

	out := &Output{Mask: mask}
	if call.Diagnostics {
		out.Plot = &handle.Figure{
			Title: "threshold",
			Data: map[string]any{
				"level":             in.Level,
				"foreground_pixels": foreground,
				"total_pixels":      len(src.Pix),
			},
		}
	}
	return out, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/threshold/manifest.hcl")
	r.RegisterHandler("OnRunThreshold", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunThreshold,
	})
}

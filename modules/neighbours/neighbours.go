// Package neighbours implements the built-in 'neighbours' module:
// neighbourhood statistics for every object in a label image.
package neighbours

import (
	"context"
	_ "embed"
	"reflect"
	"strconv"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
	"github.com/ak/cellpipe/internal/table"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the neighbours handler.
type Input struct {
	Labels            *labelimage.Image `pipe:"label_image"`
	NeighbourDistance int               `pipe:"neighbour_distance"`
	TouchingDistance  int               `pipe:"touching_distance"`
}

// Output defines the values the neighbours handler produces.
type Output struct {
	Stats *table.Table   `pipe:"stats"`
	Plot  *handle.Figure `pipe:"neighbour_plot"`
}

// OnRunNeighbours computes, for every object, how many other objects lie
// within the neighbour distance and what fraction of its perimeter touches
// another object.
func OnRunNeighbours(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	t := table.New("n_neighbours", "fraction_touching")
	fractions := make(map[string]any)
	for _, id := range in.Labels.Labels() {
		stats, err := labelimage.Neighbours(in.Labels, id, in.NeighbourDistance, in.TouchingDistance)
		if err != nil {
			return nil, err
		}
		if err := t.Append(id, float64(len(stats.Neighbours)), stats.FractionTouching); err != nil {
			return nil, err
		}
		fractions["object_"+strconv.Itoa(id)] = stats.FractionTouching
	}
	ctxlog.FromContext(ctx).Debug("Computed neighbourhood statistics.", "objects", t.Len())

	out := &Output{Stats: t}
	if call.Diagnostics {
		out.Plot = &handle.Figure{
			Title: "neighbours",
			Data: map[string]any{
				"neighbour_distance": in.NeighbourDistance,
				"touching_distance":  in.TouchingDistance,
				"fraction_touching":  fractions,
			},
		}
	}
	return out, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/neighbours/manifest.hcl")
	r.RegisterHandler("OnRunNeighbours", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunNeighbours,
	})
}

// Package relate implements the built-in 'relate' module: it assigns each
// child object to the parent object it overlaps most.
package relate

import (
	"context"
	_ "embed"
	"reflect"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
	"github.com/ak/cellpipe/internal/table"
)

//go:embed manifest.hcl
var manifestHCL string

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the relate handler.
type Input struct {
	Parents  *labelimage.Image `pipe:"parents"`
	Children *labelimage.Image `pipe:"children"`
}

// Output defines the values the relate handler produces.
type Output struct {
	Assignments *table.Table `pipe:"assignments"`
}

// OnRunRelate assigns every child to the parent covering most of its pixels.
// When two parents overlap a child equally, the smaller parent id wins.
// Children that overlap only background get no row.
func OnRunRelate(ctx context.Context, call *invoker.Call, in *Input) (*Output, error) {
	assignments, err := labelimage.Relate(in.Parents, in.Children)
	if err != nil {
		return nil, err
	}

	t := table.New("parent_id")
	for _, child := range in.Children.Labels() {
		parent, ok := assignments[child]
		if !ok {
			continue
		}
		if err := t.Append(child, float64(parent)); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("Related objects.", "children_assigned", t.Len())
	return &Output{Assignments: t}, nil
}

// Register registers the module with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.MustLoadManifest(manifestHCL, "modules/relate/manifest.hcl")
	r.RegisterHandler("OnRunRelate", &registry.RegisteredHandler{
		NewInput:   func() any { return new(Input) },
		InputType:  reflect.TypeOf(Input{}),
		OutputType: reflect.TypeOf(Output{}),
		Fn:         OnRunRelate,
	})
}

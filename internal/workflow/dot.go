package workflow

import (
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
)

// WriteDOT renders a workflow type's stage-and-step dependency graph in DOT
// format. Stages become subgraph-style prefixed vertices; intra-stage step
// dependencies and inter-stage dependencies both appear as edges.
func WriteDOT(w io.Writer, t *Type) error {
	g := graph.New(graph.StringHash, graph.Directed())

	stageVertex := func(stage string) string { return "stage." + stage }
	stepVertex := func(stage, step string) string { return fmt.Sprintf("%s.%s", stage, step) }

	for _, stage := range t.Stages() {
		label := fmt.Sprintf("%s [%s]", stage, t.Mode(stage))
		if err := g.AddVertex(stageVertex(stage), graph.VertexAttribute("label", label), graph.VertexAttribute("shape", "box")); err != nil {
			return errors.Wrapf(err, "unable to add stage vertex '%s'", stage)
		}
		for _, step := range t.Steps(stage) {
			if err := g.AddVertex(stepVertex(stage, step), graph.VertexAttribute("label", step)); err != nil {
				return errors.Wrapf(err, "unable to add step vertex '%s'", step)
			}
			if err := g.AddEdge(stageVertex(stage), stepVertex(stage, step), graph.EdgeAttribute("style", "dotted")); err != nil {
				return errors.Wrapf(err, "unable to link step '%s' to its stage", step)
			}
		}
	}

	for _, stage := range t.Stages() {
		for _, dep := range t.StageDeps(stage) {
			if err := g.AddEdge(stageVertex(dep), stageVertex(stage)); err != nil {
				return errors.Wrapf(err, "unable to add stage edge '%s' -> '%s'", dep, stage)
			}
		}
		for _, step := range t.Steps(stage) {
			for _, dep := range t.StepDeps(step) {
				if err := g.AddEdge(stepVertex(stage, dep), stepVertex(stage, step)); err != nil {
					return errors.Wrapf(err, "unable to add step edge '%s' -> '%s'", dep, step)
				}
			}
		}
	}

	if err := draw.DOT(g, w); err != nil {
		return errors.Wrap(err, "unable to render DOT graph")
	}
	return nil
}

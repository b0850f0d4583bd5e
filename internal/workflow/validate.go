package workflow

import (
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// Validate checks a declaration's structure and dependency graphs and, on
// success, returns the immutable Type the registry will hold. Every problem
// is reported with the attribute it was found in.
func Validate(decl *Declaration) (*Type, error) {
	if decl.Name == "" {
		return nil, &DeclarationError{Workflow: decl.Name, Attribute: "name", Reason: "workflow type must have a name"}
	}
	reject := func(attribute, reason string) (*Type, error) {
		return nil, &DeclarationError{Workflow: decl.Name, Attribute: attribute, Reason: reason}
	}

	// All five structural attributes must be present and correctly shaped.
	if len(decl.Stages) == 0 {
		return reject("stages", "at least one stage is required")
	}
	if decl.StageModes == nil {
		return reject("stage_modes", "attribute is missing")
	}
	if decl.StepsPerStage == nil {
		return reject("steps_per_stage", "attribute is missing")
	}
	if decl.InterStageDeps == nil {
		return reject("inter_stage_dependencies", "attribute is missing")
	}
	if decl.IntraStageDeps == nil {
		return reject("intra_stage_dependencies", "attribute is missing")
	}

	stageSet := make(map[string]struct{}, len(decl.Stages))
	for _, stage := range decl.Stages {
		if _, dup := stageSet[stage]; dup {
			return reject("stages", fmt.Sprintf("duplicate stage '%s'", stage))
		}
		stageSet[stage] = struct{}{}
	}

	// StepsPerStage's key set must equal the declared stages exactly.
	for stage := range decl.StepsPerStage {
		if _, ok := stageSet[stage]; !ok {
			return reject("steps_per_stage", fmt.Sprintf("stage '%s' is not declared in stages", stage))
		}
	}
	stageOfStep := make(map[string]string)
	for _, stage := range decl.Stages {
		steps, ok := decl.StepsPerStage[stage]
		if !ok || len(steps) == 0 {
			return reject("steps_per_stage", fmt.Sprintf("stage '%s' declares no steps", stage))
		}
		for _, step := range steps {
			if owner, dup := stageOfStep[step]; dup {
				return reject("steps_per_stage", fmt.Sprintf("step '%s' declared in both '%s' and '%s'", step, owner, stage))
			}
			stageOfStep[step] = stage
		}
	}

	for _, stage := range decl.Stages {
		mode, ok := decl.StageModes[stage]
		if !ok {
			return reject("stage_modes", fmt.Sprintf("stage '%s' has no mode", stage))
		}
		if _, err := ParseMode(string(mode)); err != nil {
			return reject("stage_modes", fmt.Sprintf("stage '%s': %v", stage, err))
		}
	}
	for stage := range decl.StageModes {
		if _, ok := stageSet[stage]; !ok {
			return reject("stage_modes", fmt.Sprintf("stage '%s' is not declared in stages", stage))
		}
	}

	// The stage dependency relation must name declared stages and form a DAG.
	if err := checkAcyclic(decl.Stages, decl.InterStageDeps); err != nil {
		return reject("inter_stage_dependencies", err.Error())
	}

	// Step dependencies must stay within the declaring stage and form a DAG
	// per stage.
	for step, deps := range decl.IntraStageDeps {
		stage, ok := stageOfStep[step]
		if !ok {
			return reject("intra_stage_dependencies", fmt.Sprintf("step '%s' is not declared in any stage", step))
		}
		for _, dep := range deps {
			depStage, ok := stageOfStep[dep]
			if !ok {
				return reject("intra_stage_dependencies", fmt.Sprintf("step '%s' depends on undeclared step '%s'", step, dep))
			}
			if depStage != stage {
				return reject("intra_stage_dependencies",
					fmt.Sprintf("step '%s' (stage '%s') depends on step '%s' from stage '%s'", step, stage, dep, depStage))
			}
		}
	}
	for _, stage := range decl.Stages {
		stageDeps := make(map[string][]string)
		for _, step := range decl.StepsPerStage[stage] {
			if deps, ok := decl.IntraStageDeps[step]; ok {
				stageDeps[step] = deps
			}
		}
		if err := checkAcyclic(decl.StepsPerStage[stage], stageDeps); err != nil {
			return reject("intra_stage_dependencies", fmt.Sprintf("stage '%s': %v", stage, err))
		}
	}

	return &Type{
		name:           decl.Name,
		stages:         append([]string(nil), decl.Stages...),
		stageModes:     copyModes(decl.StageModes),
		stepsPerStage:  copyDeps(decl.StepsPerStage),
		interStageDeps: copyDeps(decl.InterStageDeps),
		intraStageDeps: copyDeps(decl.IntraStageDeps),
		stageOfStep:    stageOfStep,
	}, nil
}

// checkAcyclic verifies that a dependency relation over the given vertices
// forms a directed acyclic graph. The graph is built with cycle prevention
// enabled, so the offending edge is reported the moment it would close a
// cycle.
func checkAcyclic(vertices []string, deps map[string][]string) error {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	vertexSet := make(map[string]struct{}, len(vertices))
	for _, v := range vertices {
		if err := g.AddVertex(v); err != nil {
			return errors.Wrapf(err, "unable to add vertex '%s'", v)
		}
		vertexSet[v] = struct{}{}
	}

	for node, nodeDeps := range deps {
		if _, ok := vertexSet[node]; !ok {
			return fmt.Errorf("'%s' is not declared", node)
		}
		seen := make(map[string]struct{}, len(nodeDeps))
		for _, dep := range nodeDeps {
			if _, ok := vertexSet[dep]; !ok {
				return fmt.Errorf("'%s' depends on undeclared '%s'", node, dep)
			}
			if _, dup := seen[dep]; dup {
				continue // dependency sets tolerate repeated entries
			}
			seen[dep] = struct{}{}
			if err := g.AddEdge(dep, node); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return fmt.Errorf("dependency of '%s' on '%s' creates a cycle", node, dep)
				}
				return errors.Wrapf(err, "unable to add edge from '%s' to '%s'", dep, node)
			}
		}
	}
	return nil
}

func copyModes(in map[string]Mode) map[string]Mode {
	out := make(map[string]Mode, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyDeps(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/model"
	"github.com/ak/cellpipe/internal/pipeline"
	"github.com/ak/cellpipe/internal/scheduler"
	"github.com/ak/cellpipe/internal/workflow"
)

// Run executes the main application logic based on the provided
// configuration: build the pipeline, then either execute it once or run it
// under the requested workflow type.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	p, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Pipeline built.", "pipeline", p.Name, "steps", len(p.Steps), "outputs", p.OutputHandles())

	jobInputs, err := parseJobInputs(a.config.Inputs)
	if err != nil {
		return err
	}

	if a.config.DrawPath != "" {
		if err := a.drawWorkflow(); err != nil {
			return err
		}
	}

	if a.config.Workflow != "" {
		return a.runWorkflow(ctx, p, jobInputs)
	}

	a.logger.Info("Executing pipeline.", "pipeline", p.Name, "diagnostics", a.config.Diagnostics)
	store, err := pipeline.Execute(ctx, p, jobInputs, a.config.Diagnostics)
	if err != nil {
		return errors.Wrap(err, "execution failed")
	}
	a.logger.Info("Execution finished.", "handles_produced", store.Keys())
	return nil
}

// buildPipeline parses the configured pipeline file and validates it against
// the module registry.
func (a *App) buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(a.config.PipelinePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse pipeline file %s: %w", a.config.PipelinePath, diags)
	}
	specs, specDiags := model.ParsePipelineFile(ctx, hclFile, a.config.PipelinePath)
	if specDiags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", a.config.PipelinePath, specDiags)
	}
	spec, err := model.SinglePipeline(specs)
	if err != nil {
		return nil, errors.Wrap(err, a.config.PipelinePath)
	}
	return pipeline.Build(ctx, a.registry, spec)
}

// runWorkflow submits one job per step of the workflow type, all running the
// built pipeline, through the local coordinator.
func (a *App) runWorkflow(ctx context.Context, p *pipeline.Pipeline, jobInputs map[string]handle.Value) error {
	t, err := a.workflows.Get(a.config.Workflow)
	if err != nil {
		return err
	}

	jobs := make(map[string][]*scheduler.Job)
	for _, stage := range t.Stages() {
		for _, step := range t.Steps(stage) {
			jobs[step] = []*scheduler.Job{scheduler.NewJob(step, p, jobInputs)}
		}
	}

	a.logger.Info("Running workflow.", "workflow", t.Name(), "stages", t.Stages(), "workers", a.config.WorkerCount)
	coordinator := scheduler.New(a.workflows, a.config.WorkerCount)
	report, err := coordinator.Run(ctx, t.Name(), jobs, a.config.Diagnostics)
	if report != nil {
		a.logger.Info("Workflow run finished.", "jobs", len(report.Results()), "failed", report.Failed())
	}
	return err
}

// drawWorkflow writes the configured workflow's dependency graph as DOT.
func (a *App) drawWorkflow() error {
	t, err := a.workflows.Get(a.config.Workflow)
	if err != nil {
		return err
	}
	f, err := os.Create(a.config.DrawPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", a.config.DrawPath)
	}
	defer f.Close()

	if err := workflow.WriteDOT(f, t); err != nil {
		return err
	}
	a.logger.Info("Workflow graph written.", "workflow", t.Name(), "path", a.config.DrawPath)
	return nil
}

// parseJobInputs turns name=value strings into scalar handle values. Values
// that parse as numbers or booleans keep that type; everything else stays a
// string.
func parseJobInputs(raw map[string]string) (map[string]handle.Value, error) {
	inputs := make(map[string]handle.Value, len(raw))
	for name, value := range raw {
		if name == "" {
			return nil, fmt.Errorf("job input with empty name")
		}
		inputs[name] = handle.NewScalar(parseScalarLiteral(value))
	}
	return inputs, nil
}

func parseScalarLiteral(s string) cty.Value {
	if b, err := strconv.ParseBool(s); err == nil {
		return cty.BoolVal(b)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return cty.NumberFloatVal(f)
	}
	return cty.StringVal(s)
}

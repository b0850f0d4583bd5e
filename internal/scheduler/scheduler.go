// Package scheduler provides a local, in-process coordinator that executes
// concrete jobs against a registered workflow type. It honors the contract a
// distributed submission layer must also honor: stages begin only after
// every depended-on stage has fully completed, sequential stages run their
// jobs one after another, and parallel stages run jobs concurrently with no
// ordering guarantee and no shared mutable state.
//
// A failure anywhere stops the run before any dependent stage is submitted.
// The barrier is deliberately conservative: a failed job blocks the whole
// following stage, not just the jobs transitively depending on it.
package scheduler

import (
	"context"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/handle"
	"github.com/ak/cellpipe/internal/pipeline"
	"github.com/ak/cellpipe/internal/workflow"
)

// Job is one unit of distributed work: a pipeline plus its job inputs,
// attached to a workflow step. Every job owns its own value store; nothing
// is shared between jobs.
type Job struct {
	ID       uuid.UUID
	Step     string
	Pipeline *pipeline.Pipeline
	Inputs   map[string]handle.Value
}

// NewJob creates a job for a workflow step.
func NewJob(step string, p *pipeline.Pipeline, inputs map[string]handle.Value) *Job {
	return &Job{
		ID:       uuid.New(),
		Step:     step,
		Pipeline: p,
		Inputs:   inputs,
	}
}

// JobResult records the outcome of one job. Store holds whatever the job
// produced, including the partial contents of an aborted job.
type JobResult struct {
	Job   *Job
	Store *pipeline.ValueStore
	Err   error
}

// Report collects the results of one workflow run.
type Report struct {
	Workflow string

	mu      sync.Mutex
	results []*JobResult
}

// Results returns the recorded job results.
func (r *Report) Results() []*JobResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*JobResult(nil), r.results...)
}

// Failed reports whether any job in the run failed.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

func (r *Report) add(res *JobResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Coordinator executes workflow runs against a workflow-type registry.
type Coordinator struct {
	workflows *workflow.Registry
	workers   int
}

// New creates a coordinator. workers bounds how many jobs of a parallel
// stage run at once.
func New(workflows *workflow.Registry, workers int) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{workflows: workflows, workers: workers}
}

// Run executes all jobs of one workflow run. Jobs are grouped by the
// workflow step they belong to; a step with no jobs simply completes.
// The returned report is valid even when the run failed.
func (c *Coordinator) Run(ctx context.Context, workflowType string, jobs map[string][]*Job, diagnostics bool) (*Report, error) {
	logger := ctxlog.FromContext(ctx).With("workflow", workflowType)

	t, err := c.workflows.Get(workflowType)
	if err != nil {
		return nil, err
	}
	for step := range jobs {
		if _, ok := t.StageOf(step); !ok {
			return nil, errors.Errorf("step '%s' is not declared by workflow type '%s'", step, workflowType)
		}
	}

	report := &Report{Workflow: workflowType}

	order, err := stageOrder(t)
	if err != nil {
		return nil, errors.Wrap(err, "unable to order stages")
	}

	for _, stage := range order {
		stageLogger := logger.With("stage", stage, "mode", t.Mode(stage))
		stageLogger.Info("Starting stage.")

		// Steps run in dependency waves; a wave only starts after the
		// previous wave's jobs have all completed.
		for _, wave := range stepWaves(t, stage) {
			var waveJobs []*Job
			for _, step := range wave {
				waveJobs = append(waveJobs, jobs[step]...)
			}
			if len(waveJobs) == 0 {
				continue
			}

			switch t.Mode(stage) {
			case workflow.ModeSequential:
				err = c.runSequential(ctx, waveJobs, diagnostics, report)
			case workflow.ModeParallel:
				err = c.runParallel(ctx, waveJobs, diagnostics, report)
			}
			if err != nil {
				stageLogger.Error("Stage failed; dependent stages will not be submitted.", "error", err)
				return report, errors.Wrapf(err, "stage '%s' failed", stage)
			}
		}
		stageLogger.Info("Stage completed.")
	}

	return report, nil
}

// runSequential executes jobs one after another, aborting on the first
// failure.
func (c *Coordinator) runSequential(ctx context.Context, jobs []*Job, diagnostics bool, report *Report) error {
	for _, job := range jobs {
		if err := c.runJob(ctx, job, diagnostics, report); err != nil {
			return err
		}
	}
	return nil
}

// runParallel executes jobs concurrently with bounded parallelism. All jobs
// of the wave are started; the first failure cancels the rest.
func (c *Coordinator) runParallel(ctx context.Context, jobs []*Job, diagnostics bool, report *Report) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.workers)

	for _, job := range jobs {
		group.Go(func() error {
			return c.runJob(groupCtx, job, diagnostics, report)
		})
	}
	return group.Wait()
}

// runJob executes a single job's pipeline and records the result.
func (c *Coordinator) runJob(ctx context.Context, job *Job, diagnostics bool, report *Report) error {
	logger := ctxlog.FromContext(ctx).With("job", job.ID.String(), "step", job.Step)
	logger.Debug("Executing job.")

	store, err := pipeline.Execute(ctx, job.Pipeline, job.Inputs, diagnostics)
	report.add(&JobResult{Job: job, Store: store, Err: err})
	if err != nil {
		logger.Error("Job failed.", "error", err)
		return errors.Wrapf(err, "job %s (step '%s')", job.ID, job.Step)
	}
	logger.Debug("Job finished.", "handles", store.Len())
	return nil
}

// stageOrder returns the stages in dependency order, breaking ties by
// declaration order so runs are deterministic.
func stageOrder(t *workflow.Type) ([]string, error) {
	stages := t.Stages()
	index := make(map[string]int, len(stages))
	for i, stage := range stages {
		index[stage] = i
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())
	for _, stage := range stages {
		if err := g.AddVertex(stage); err != nil {
			return nil, err
		}
	}
	for _, stage := range stages {
		for _, dep := range t.StageDeps(stage) {
			if err := g.AddEdge(dep, stage); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, err
			}
		}
	}
	return graph.StableTopologicalSort(g, func(a, b string) bool {
		return index[a] < index[b]
	})
}

// stepWaves groups a stage's steps into dependency waves: wave n contains
// the steps whose dependencies are all satisfied by waves 0..n-1. Within a
// wave, declaration order is preserved.
func stepWaves(t *workflow.Type, stage string) [][]string {
	steps := t.Steps(stage)
	done := make(map[string]bool, len(steps))
	var waves [][]string

	for len(done) < len(steps) {
		var wave []string
		for _, step := range steps {
			if done[step] {
				continue
			}
			ready := true
			for _, dep := range t.StepDeps(step) {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, step)
			}
		}
		if len(wave) == 0 {
			// Unsatisfiable dependencies are rejected at registration; an
			// empty wave here would mean a validator bug, so stop rather
			// than spin.
			break
		}
		for _, step := range wave {
			done[step] = true
		}
		waves = append(waves, wave)
	}
	return waves
}

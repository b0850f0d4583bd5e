// Package workflow provides the declarative description of workflow types:
// ordered stages, a sequential-or-parallel execution mode per stage, ordered
// steps per stage, and the two dependency relations (stage over stages, step
// over steps within a stage) that gate distributed job submission.
//
// A declaration moves through Declared -> Validated -> Registered, or is
// Rejected with a structural error and never becomes queryable. All
// validation happens at registration time so that submission logic can trust
// every type it looks up.
package workflow

import "fmt"

// Mode is a stage's execution mode.
type Mode string

const (
	// ModeSequential runs a stage's jobs one after another; a later job may
	// assume all earlier same-stage jobs are complete.
	ModeSequential Mode = "sequential"
	// ModeParallel runs a stage's jobs concurrently with no ordering
	// guarantee among themselves.
	ModeParallel Mode = "parallel"
)

// ParseMode converts a declaration mode string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSequential, ModeParallel:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown stage mode %q", s)
}

// Declaration is the raw, not yet validated description of one workflow
// type. All five structural attributes must be present for the declaration
// to validate; a nil map counts as absent.
type Declaration struct {
	Name string
	// Stages lists the stage names in execution order.
	Stages []string
	// StageModes assigns every stage its execution mode.
	StageModes map[string]Mode
	// StepsPerStage lists each stage's steps in declaration order. Its key
	// set must equal Stages.
	StepsPerStage map[string][]string
	// InterStageDeps maps a stage to the set of stages that must complete
	// before it may begin.
	InterStageDeps map[string][]string
	// IntraStageDeps maps a step to the set of same-stage steps it depends
	// on.
	IntraStageDeps map[string][]string
}

// Type is a validated, registered workflow type. It is immutable and safely
// shared read-only across all concurrent jobs.
type Type struct {
	name           string
	stages         []string
	stageModes     map[string]Mode
	stepsPerStage  map[string][]string
	interStageDeps map[string][]string
	intraStageDeps map[string][]string
	stageOfStep    map[string]string
}

// Name returns the workflow type's name.
func (t *Type) Name() string { return t.name }

// Stages returns the stage names in declared order.
func (t *Type) Stages() []string { return append([]string(nil), t.stages...) }

// Mode returns a stage's execution mode.
func (t *Type) Mode(stage string) Mode { return t.stageModes[stage] }

// Steps returns a stage's step names in declared order.
func (t *Type) Steps(stage string) []string {
	return append([]string(nil), t.stepsPerStage[stage]...)
}

// StageDeps returns the stages that must complete before the given stage.
func (t *Type) StageDeps(stage string) []string {
	return append([]string(nil), t.interStageDeps[stage]...)
}

// StepDeps returns the same-stage steps the given step depends on.
func (t *Type) StepDeps(step string) []string {
	return append([]string(nil), t.intraStageDeps[step]...)
}

// StageOf returns the stage a step belongs to.
func (t *Type) StageOf(step string) (string, bool) {
	stage, ok := t.stageOfStep[step]
	return stage, ok
}

package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath  string // single .hcl pipeline file
	ManifestsPath string // optional directory of extra module manifests
	WorkflowsPath string // optional directory of workflow declarations

	// Workflow names a registered workflow type to run the pipeline under.
	// When empty the pipeline is executed once, directly.
	Workflow string
	// DrawPath, when set together with Workflow, is where the workflow's
	// dependency graph is written in DOT format.
	DrawPath string

	// Inputs are scalar job inputs, by handle name.
	Inputs map[string]string

	Diagnostics bool
	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates a configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.DrawPath != "" && cfg.Workflow == "" {
		return nil, errors.New("DrawPath requires a workflow to draw")
	}
	return &cfg, nil
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/registry"
	"github.com/ak/cellpipe/internal/workflow"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	registry  *registry.Registry
	workflows *workflow.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Startup errors are programmer or deployment errors and panic; the
// entrypoint recovers and turns them into a clean exit.
func NewApp(outW io.Writer, config *Config, modules ...registry.Module) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All built-in modules registered.", "count", len(modules))

	if config.ManifestsPath != "" {
		if err := reg.LoadManifestsRecursively(ctx, config.ManifestsPath); err != nil {
			panic(fmt.Errorf("failed to load module manifests: %w", err))
		}
	}

	// A manifest that drifted out of sync with its Go implementation must
	// never reach job execution.
	if err := reg.Validate(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.", "modules", reg.Modules())

	workflows := workflow.NewRegistry()
	if config.WorkflowsPath != "" {
		if err := workflows.LoadRecursively(ctx, config.WorkflowsPath); err != nil {
			panic(fmt.Errorf("failed to load workflow declarations: %w", err))
		}
	}

	return &App{
		outW:      outW,
		logger:    logger,
		config:    config,
		registry:  reg,
		workflows: workflows,
	}
}

// Registry returns the application's module registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Workflows returns the application's workflow-type registry. This is
// primarily for testing.
func (a *App) Workflows() *workflow.Registry {
	return a.workflows
}

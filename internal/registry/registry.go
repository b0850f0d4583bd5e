// Package registry provides the central glue for the module system.
//
// The Registry maps the names used in module manifests to the compiled Go
// handlers that implement them, and holds the parsed descriptors themselves.
// During startup the registry is populated and then validated, so a manifest
// that drifted out of sync with its Go implementation is rejected before any
// job executes.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/fsutil"
	"github.com/ak/cellpipe/internal/model"
)

// Module is the interface that all built-in modules implement to be
// registered. Registration is an explicit call during startup, never an
// import side effect, so registration order and failures stay visible.
type Module interface {
	Register(r *Registry)
}

// RegisteredHandler holds the compiled Go parts of one module implementation.
type RegisteredHandler struct {
	// NewInput allocates the handler's input struct. Fields carry a
	// `pipe:"<handle>"` tag naming the input handle they receive.
	NewInput func() any
	// InputType is the (non-pointer) type of the input struct.
	InputType reflect.Type
	// OutputType is the (non-pointer) type of the struct the handler
	// returns. Fields carry a `pipe:"<handle>"` tag naming the output
	// handle they fill.
	OutputType reflect.Type
	// Fn is the handler function:
	// func(ctx context.Context, call *invoker.Call, in *Input) (*Output, error)
	Fn any
}

// Registry holds all registered handlers and module descriptors for a single
// application instance.
type Registry struct {
	handlers    map[string]*RegisteredHandler
	descriptors map[string]*model.ModuleDescriptor
	order       []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		handlers:    make(map[string]*RegisteredHandler),
		descriptors: make(map[string]*model.ModuleDescriptor),
	}
}

// RegisterHandler registers a Go handler under its lifecycle name.
func (r *Registry) RegisterHandler(name string, handler *RegisteredHandler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering module handler.", "name", name)
	r.handlers[name] = handler
}

// AddDescriptor stores a parsed module descriptor.
func (r *Registry) AddDescriptor(d *model.ModuleDescriptor) error {
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("module '%s' already declared", d.Name)
	}
	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// MustLoadManifest parses an embedded manifest source and stores every module
// descriptor it declares. Built-in modules call this from Register, so a
// broken embedded manifest is a programmer error and panics.
func (r *Registry) MustLoadManifest(src, filename string) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), filename)
	if diags.HasErrors() {
		panic(fmt.Sprintf("failed to parse embedded manifest %s: %s", filename, diags))
	}
	descriptors, err := model.NewModules(context.Background(), hclFile, filename)
	if err != nil {
		panic(fmt.Sprintf("failed to decode embedded manifest %s: %s", filename, err))
	}
	for _, d := range descriptors {
		if err := r.AddDescriptor(d); err != nil {
			panic(err.Error())
		}
	}
}

// LoadManifestsRecursively parses every .hcl manifest below the given path
// and stores the module descriptors it finds.
func (r *Registry) LoadManifestsRecursively(ctx context.Context, manifestsPath string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading descriptors from manifests path...", "path", manifestsPath)

	filePaths, err := fsutil.FindFilesByExtension(manifestsPath, ".hcl")
	if err != nil {
		logger.Error("Failed to walk manifests directory", "path", manifestsPath, "error", err)
		return err
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl manifest files found in path", "path", manifestsPath)
		return nil
	}

	parser := hclparse.NewParser()
	loaded := 0
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}
		descriptors, err := model.NewModules(ctx, hclFile, filePath)
		if err != nil {
			return fmt.Errorf("failed to process module manifest in %s: %w", filePath, err)
		}
		for _, d := range descriptors {
			if err := r.AddDescriptor(d); err != nil {
				return fmt.Errorf("%s: %w", filePath, err)
			}
		}
		loaded += len(descriptors)
	}

	logger.Info("Registry loaded manifests.", "module_descriptors_loaded", loaded)
	return nil
}

// Descriptor returns the descriptor for a module name.
func (r *Registry) Descriptor(name string) (*model.ModuleDescriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Handler returns the Go handler backing a module descriptor.
func (r *Registry) Handler(d *model.ModuleDescriptor) (*RegisteredHandler, bool) {
	h, ok := r.handlers[d.Lifecycle.OnRun]
	return h, ok
}

// Modules returns the registered module names in sorted order.
func (r *Registry) Modules() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

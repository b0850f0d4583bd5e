package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"

	"github.com/ak/cellpipe/internal/ctxlog"
	"github.com/ak/cellpipe/internal/fsutil"
)

// Registry is the process-wide lookup of registered workflow types, keyed by
// name. It is constructed explicitly at startup and passed by reference;
// there is no hidden global. Once a type is registered it never changes, so
// concurrent readers need no coordination beyond the map lock.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates an empty workflow-type registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Register validates a declaration and, on success, stores the resulting
// type. A rejected declaration never becomes queryable.
func (r *Registry) Register(decl *Declaration) (*Type, error) {
	t, err := Validate(decl)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name()]; exists {
		return nil, &DeclarationError{Workflow: t.Name(), Attribute: "name",
			Reason: "a workflow type with this name is already registered"}
	}
	r.types[t.Name()] = t
	return t, nil
}

// Get returns the registered type for a workflow-type name.
func (r *Registry) Get(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, &LookupError{Name: name}
	}
	return t, nil
}

// List returns the registered workflow-type names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadRecursively parses every .hcl workflow file below the given path and
// registers each declaration it finds.
func (r *Registry) LoadRecursively(ctx context.Context, workflowsPath string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Workflow registry loading declarations...", "path", workflowsPath)

	filePaths, err := fsutil.FindFilesByExtension(workflowsPath, ".hcl")
	if err != nil {
		return errors.Wrapf(err, "unable to walk workflows directory %s", workflowsPath)
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl workflow files found in path", "path", workflowsPath)
		return nil
	}

	parser := hclparse.NewParser()
	registered := 0
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}
		decls, declDiags := ParseWorkflowFile(ctx, hclFile, filePath)
		if declDiags.HasErrors() {
			return fmt.Errorf("failed to process workflow declaration in %s: %w", filePath, declDiags)
		}
		for _, decl := range decls {
			if _, err := r.Register(decl); err != nil {
				return errors.Wrapf(err, "rejected workflow declaration in %s", filePath)
			}
			registered++
		}
	}

	logger.Info("Workflow registry loaded.", "workflow_types_registered", registered)
	return nil
}

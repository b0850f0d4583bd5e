// Package handle defines the typed value slots that flow between pipeline
// steps. Every value a processing module consumes or produces is addressed by
// a handle name and carries one of a small, closed set of kinds.
//
// Why a closed kind set?
//
// Processing modules are independently implemented and only agree on the
// shape of the data they exchange. Pinning that shape to a named kind lets
// the engine check, at load time, that a module's declared contract matches
// what its implementation actually accepts and returns, instead of
// discovering a shape mismatch halfway through a job.
package handle

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Kind identifies the shape of a handle's value.
type Kind string

const (
	// KindImage is a raw intensity image buffer (2D or 3D).
	KindImage Kind = "image"
	// KindLabelImage is an integer image where 0 is background and every
	// positive value identifies one detected object.
	KindLabelImage Kind = "label_image"
	// KindTable is a per-object measurement table.
	KindTable Kind = "measurement_table"
	// KindFigure is an opaque diagnostic figure record.
	KindFigure Kind = "figure"
	// KindScalar is a single primitive value (string, number or bool).
	KindScalar Kind = "scalar"
)

// ParseKind converts a manifest kind string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindImage, KindLabelImage, KindTable, KindFigure, KindScalar:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown handle kind %q", s)
}

// Value is implemented by every type that can occupy a handle slot.
type Value interface {
	// HandleKind reports the kind of slot this value fits.
	HandleKind() Kind
}

// Scalar wraps a single primitive value. Scalars are carried as cty values
// so that literal bindings written in a pipeline file keep their declared
// type all the way into the module handler.
type Scalar struct {
	V cty.Value
}

// NewScalar wraps a cty value into a handle value.
func NewScalar(v cty.Value) Scalar { return Scalar{V: v} }

// HandleKind implements Value.
func (Scalar) HandleKind() Kind { return KindScalar }

// Figure is an opaque diagnostic record produced by a module when the caller
// requested diagnostics. The engine never interprets its contents; it only
// guarantees that a declared figure output is always present in the value
// store, as an empty sentinel when diagnostics were not requested.
type Figure struct {
	Title string
	Data  map[string]any
}

// EmptyFigure returns the well-typed sentinel used in place of a diagnostic
// figure that was not produced.
func EmptyFigure() *Figure { return &Figure{} }

// IsEmpty reports whether the figure is the empty sentinel.
func (f *Figure) IsEmpty() bool { return f.Title == "" && len(f.Data) == 0 }

// HandleKind implements Value.
func (*Figure) HandleKind() Kind { return KindFigure }

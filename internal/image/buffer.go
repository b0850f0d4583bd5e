// Package image provides the raw intensity buffer exchanged between
// processing modules. It deliberately knows nothing about file formats or
// rendering; it is the in-memory payload of an "image" handle.
package image

import (
	"fmt"

	"github.com/ak/cellpipe/internal/handle"
)

// Buffer is a dense 2D or 3D intensity raster. Pixels are stored plane by
// plane, row-major within each plane. A 2D image has Depth == 1.
type Buffer struct {
	Width  int
	Height int
	Depth  int
	Pix    []float64
}

// New allocates a zeroed 2D buffer.
func New(width, height int) *Buffer {
	return New3D(width, height, 1)
}

// New3D allocates a zeroed volumetric buffer.
func New3D(width, height, depth int) *Buffer {
	if width <= 0 || height <= 0 || depth <= 0 {
		panic(fmt.Sprintf("image: invalid dimensions %dx%dx%d", width, height, depth))
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Depth:  depth,
		Pix:    make([]float64, width*height*depth),
	}
}

// HandleKind implements handle.Value.
func (*Buffer) HandleKind() handle.Kind { return handle.KindImage }

// index computes the flat offset of (x, y, z). Bounds are the caller's
// responsibility; out-of-range access panics like a slice would.
func (b *Buffer) index(x, y, z int) int {
	return (z*b.Height+y)*b.Width + x
}

// At returns the intensity at (x, y, z).
func (b *Buffer) At(x, y, z int) float64 {
	return b.Pix[b.index(x, y, z)]
}

// Set stores an intensity at (x, y, z).
func (b *Buffer) Set(x, y, z int, v float64) {
	b.Pix[b.index(x, y, z)] = v
}

// Clone returns a deep copy. Modules that mutate their input in place must
// clone first when the buffer is also consumed downstream.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Width: b.Width, Height: b.Height, Depth: b.Depth, Pix: make([]float64, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

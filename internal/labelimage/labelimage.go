// Package labelimage provides the object mask representation shared by all
// segmentation-aware modules, plus the object-topology computations the
// engine offers them: connected-component labeling, parent/child assignment
// and neighbour/touching analysis.
package labelimage

import (
	"fmt"
	"sort"

	"github.com/ak/cellpipe/internal/handle"
)

// Image is a dense 2D or 3D integer raster. Pixel value 0 is background;
// every positive value identifies one object. Object ids are unique within
// one image but need not be contiguous.
type Image struct {
	Width  int
	Height int
	Depth  int
	Pix    []int
}

// New allocates a zeroed 2D label image.
func New(width, height int) *Image {
	return New3D(width, height, 1)
}

// New3D allocates a zeroed volumetric label image.
func New3D(width, height, depth int) *Image {
	if width <= 0 || height <= 0 || depth <= 0 {
		panic(fmt.Sprintf("labelimage: invalid dimensions %dx%dx%d", width, height, depth))
	}
	return &Image{
		Width:  width,
		Height: height,
		Depth:  depth,
		Pix:    make([]int, width*height*depth),
	}
}

// FromRows builds a 2D label image from row-major literal data. It is mainly
// useful in tests and small fixtures.
func FromRows(rows [][]int) *Image {
	if len(rows) == 0 || len(rows[0]) == 0 {
		panic("labelimage: FromRows requires at least one row and column")
	}
	img := New(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != img.Width {
			panic(fmt.Sprintf("labelimage: ragged row %d (want %d columns, got %d)", y, img.Width, len(row)))
		}
		for x, v := range row {
			img.Set(x, y, 0, v)
		}
	}
	return img
}

// HandleKind implements handle.Value.
func (*Image) HandleKind() handle.Kind { return handle.KindLabelImage }

func (m *Image) index(x, y, z int) int {
	return (z*m.Height+y)*m.Width + x
}

// At returns the label at (x, y, z).
func (m *Image) At(x, y, z int) int { return m.Pix[m.index(x, y, z)] }

// Set stores a label at (x, y, z).
func (m *Image) Set(x, y, z int, v int) { m.Pix[m.index(x, y, z)] = v }

// SameShape reports whether two images have identical dimensions.
func (m *Image) SameShape(other *Image) bool {
	return m.Width == other.Width && m.Height == other.Height && m.Depth == other.Depth
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{Width: m.Width, Height: m.Height, Depth: m.Depth, Pix: make([]int, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Labels returns the distinct nonzero object ids in ascending order.
func (m *Image) Labels() []int {
	seen := make(map[int]struct{})
	for _, v := range m.Pix {
		if v > 0 {
			seen[v] = struct{}{}
		}
	}
	labels := make([]int, 0, len(seen))
	for id := range seen {
		labels = append(labels, id)
	}
	sort.Ints(labels)
	return labels
}

// Area returns the number of pixels carrying the given id.
func (m *Image) Area(id int) int {
	n := 0
	for _, v := range m.Pix {
		if v == id {
			n++
		}
	}
	return n
}

// box is an inclusive 3D bounding box.
type box struct {
	x0, y0, z0 int
	x1, y1, z1 int
}

// boundingBox computes the inclusive bounding box of an object, optionally
// padded and clamped to the image bounds. The second return value is false
// when the id does not occur in the image.
func (m *Image) boundingBox(id, pad int) (box, bool) {
	b := box{x0: m.Width, y0: m.Height, z0: m.Depth, x1: -1, y1: -1, z1: -1}
	for z := 0; z < m.Depth; z++ {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				if m.At(x, y, z) != id {
					continue
				}
				if x < b.x0 {
					b.x0 = x
				}
				if y < b.y0 {
					b.y0 = y
				}
				if z < b.z0 {
					b.z0 = z
				}
				if x > b.x1 {
					b.x1 = x
				}
				if y > b.y1 {
					b.y1 = y
				}
				if z > b.z1 {
					b.z1 = z
				}
			}
		}
	}
	if b.x1 < 0 {
		return box{}, false
	}
	b.x0 = max(b.x0-pad, 0)
	b.y0 = max(b.y0-pad, 0)
	b.z0 = max(b.z0-pad, 0)
	b.x1 = min(b.x1+pad, m.Width-1)
	b.y1 = min(b.y1+pad, m.Height-1)
	b.z1 = min(b.z1+pad, m.Depth-1)
	return b, true
}

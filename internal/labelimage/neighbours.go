package labelimage

import (
	"fmt"
	"sort"
)

// NeighbourStats describes the surroundings of one object.
type NeighbourStats struct {
	// Neighbours lists the ids of other objects lying within the neighbour
	// distance of the object, in ascending order.
	Neighbours []int
	// FractionTouching is the fraction of the object's perimeter pixels that
	// have another object within the touching distance. Always in [0, 1].
	FractionTouching float64
}

// Neighbours computes neighbourhood statistics for the object with the given
// id. Distances are Chebyshev (square/cube structuring element), which makes
// dilation by d equivalent to scanning a (2d+1)-wide window.
//
// The search is confined to the object's bounding box padded by
// max(neighbourDistance, touchingDistance), so distant objects cost nothing.
// An object whose perimeter is empty (it fills the whole image, leaving no
// boundary pixel) reports FractionTouching 0 rather than dividing by zero.
func Neighbours(img *Image, id, neighbourDistance, touchingDistance int) (NeighbourStats, error) {
	if id <= 0 {
		return NeighbourStats{}, fmt.Errorf("labelimage: object id must be positive, got %d", id)
	}
	if neighbourDistance < 1 || touchingDistance < 1 {
		return NeighbourStats{}, fmt.Errorf("labelimage: distances must be >= 1, got neighbour=%d touching=%d",
			neighbourDistance, touchingDistance)
	}

	pad := max(neighbourDistance, touchingDistance)
	bb, ok := img.boundingBox(id, pad)
	if !ok {
		return NeighbourStats{}, fmt.Errorf("labelimage: object %d not present in image", id)
	}

	neighbourSet := make(map[int]struct{})
	perimeter := 0
	touching := 0

	for z := bb.z0; z <= bb.z1; z++ {
		for y := bb.y0; y <= bb.y1; y++ {
			for x := bb.x0; x <= bb.x1; x++ {
				if img.At(x, y, z) != id {
					continue
				}

				// Collect every other object id within the neighbour
				// distance of this object pixel. This is the dilation by
				// neighbourDistance, evaluated pixel by pixel.
				scanWindow(img, x, y, z, neighbourDistance, id, neighbourSet)

				if !isPerimeter(img, x, y, z, id) {
					continue
				}
				perimeter++
				if withinDistance(img, x, y, z, touchingDistance, id) {
					touching++
				}
			}
		}
	}

	stats := NeighbourStats{Neighbours: make([]int, 0, len(neighbourSet))}
	for n := range neighbourSet {
		stats.Neighbours = append(stats.Neighbours, n)
	}
	sort.Ints(stats.Neighbours)
	if perimeter > 0 {
		stats.FractionTouching = float64(touching) / float64(perimeter)
	}
	return stats, nil
}

// isPerimeter reports whether the object pixel at (x, y, z) has a
// face-adjacent pixel that does not belong to the object. Pixels on the image
// border count as perimeter: the outside behaves like background.
func isPerimeter(img *Image, x, y, z, id int) bool {
	for _, d := range [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}} {
		nx, ny, nz := x+d[0], y+d[1], z+d[2]
		if nz < 0 || nz >= img.Depth {
			if img.Depth == 1 && d[2] != 0 {
				// A 2D image has no z-neighbours at all.
				continue
			}
			return true
		}
		if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
			return true
		}
		if img.At(nx, ny, nz) != id {
			return true
		}
	}
	return false
}

// scanWindow records into set every object id other than self found within
// Chebyshev distance dist of (x, y, z).
func scanWindow(img *Image, x, y, z, dist, self int, set map[int]struct{}) {
	for dz := -dist; dz <= dist; dz++ {
		nz := z + dz
		if nz < 0 || nz >= img.Depth {
			continue
		}
		for dy := -dist; dy <= dist; dy++ {
			ny := y + dy
			if ny < 0 || ny >= img.Height {
				continue
			}
			for dx := -dist; dx <= dist; dx++ {
				nx := x + dx
				if nx < 0 || nx >= img.Width {
					continue
				}
				if v := img.At(nx, ny, nz); v > 0 && v != self {
					set[v] = struct{}{}
				}
			}
		}
	}
}

// withinDistance reports whether any pixel of another object lies within
// Chebyshev distance dist of (x, y, z).
func withinDistance(img *Image, x, y, z, dist, self int) bool {
	for dz := -dist; dz <= dist; dz++ {
		nz := z + dz
		if nz < 0 || nz >= img.Depth {
			continue
		}
		for dy := -dist; dy <= dist; dy++ {
			ny := y + dy
			if ny < 0 || ny >= img.Height {
				continue
			}
			for dx := -dist; dx <= dist; dx++ {
				nx := x + dx
				if nx < 0 || nx >= img.Width {
					continue
				}
				if v := img.At(nx, ny, nz); v > 0 && v != self {
					return true
				}
			}
		}
	}
	return false
}

package labelimage

import (
	"fmt"
	"sort"
)

// Relate assigns every child object to the parent object it lies inside.
// For each distinct nonzero child id it collects the parent ids occupying the
// same pixel positions. A child overlapping a single parent belongs to it.
//
// A child spanning several parents is resolved deterministically: the parent
// with the largest overlapping pixel count wins, and an exact overlap tie
// goes to the smallest parent id. Children that overlap only background are
// omitted from the result.
func Relate(parents, children *Image) (map[int]int, error) {
	if !parents.SameShape(children) {
		return nil, fmt.Errorf("labelimage: shape mismatch between parents (%dx%dx%d) and children (%dx%dx%d)",
			parents.Width, parents.Height, parents.Depth, children.Width, children.Height, children.Depth)
	}

	// overlap[child][parent] = shared pixel count
	overlap := make(map[int]map[int]int)
	for i, child := range children.Pix {
		if child == 0 {
			continue
		}
		parent := parents.Pix[i]
		if parent == 0 {
			// Still record the child so absent parents are distinguishable
			// from children never seen at all.
			if overlap[child] == nil {
				overlap[child] = make(map[int]int)
			}
			continue
		}
		if overlap[child] == nil {
			overlap[child] = make(map[int]int)
		}
		overlap[child][parent]++
	}

	result := make(map[int]int, len(overlap))
	for child, counts := range overlap {
		if len(counts) == 0 {
			continue
		}
		parentIDs := make([]int, 0, len(counts))
		for p := range counts {
			parentIDs = append(parentIDs, p)
		}
		sort.Ints(parentIDs)
		best := parentIDs[0]
		for _, p := range parentIDs[1:] {
			if counts[p] > counts[best] {
				best = p
			}
		}
		result[child] = best
	}
	return result, nil
}

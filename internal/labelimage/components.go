package labelimage

// Components relabels a mask into connected components. Any nonzero pixel is
// treated as foreground. Connectivity is face-wise: 4-connected within a
// plane, plus the two z-neighbours for volumetric masks. Component ids are
// assigned in scan order (z, then y, then x), so labeling is deterministic
// for a given mask.
func Components(mask *Image) *Image {
	out := New3D(mask.Width, mask.Height, mask.Depth)
	next := 0
	var stack []int

	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				idx := mask.index(x, y, z)
				if mask.Pix[idx] == 0 || out.Pix[idx] != 0 {
					continue
				}
				next++
				stack = append(stack[:0], idx)
				out.Pix[idx] = next
				for len(stack) > 0 {
					cur := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					cx := cur % mask.Width
					cy := (cur / mask.Width) % mask.Height
					cz := cur / (mask.Width * mask.Height)
					for _, d := range [][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}} {
						nx, ny, nz := cx+d[0], cy+d[1], cz+d[2]
						if nx < 0 || nx >= mask.Width || ny < 0 || ny >= mask.Height || nz < 0 || nz >= mask.Depth {
							continue
						}
						nIdx := mask.index(nx, ny, nz)
						if mask.Pix[nIdx] != 0 && out.Pix[nIdx] == 0 {
							out.Pix[nIdx] = next
							stack = append(stack, nIdx)
						}
					}
				}
			}
		}
	}
	return out
}

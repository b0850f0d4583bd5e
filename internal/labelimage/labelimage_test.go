package labelimage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponents(t *testing.T) {
	t.Parallel()

	t.Run("separates disconnected blobs in scan order", func(t *testing.T) {
		t.Parallel()
		mask := FromRows([][]int{
			{1, 1, 0, 0, 1},
			{1, 0, 0, 0, 1},
			{0, 0, 0, 0, 0},
			{0, 1, 1, 0, 0},
		})

		labeled := Components(mask)

		require.Equal(t, []int{1, 2, 3}, labeled.Labels())
		// Scan order is row-major, so the top-left blob is object 1 and the
		// top-right blob is object 2.
		require.Equal(t, 1, labeled.At(0, 0, 0))
		require.Equal(t, 2, labeled.At(4, 0, 0))
		require.Equal(t, 3, labeled.At(1, 3, 0))
	})

	t.Run("diagonal pixels are not connected", func(t *testing.T) {
		t.Parallel()
		mask := FromRows([][]int{
			{1, 0},
			{0, 1},
		})

		labeled := Components(mask)

		require.Equal(t, []int{1, 2}, labeled.Labels())
	})

	t.Run("empty mask produces no objects", func(t *testing.T) {
		t.Parallel()
		labeled := Components(New(3, 3))
		require.Empty(t, labeled.Labels())
	})
}

func TestRelate(t *testing.T) {
	t.Parallel()

	t.Run("assigns children to their enclosing parents", func(t *testing.T) {
		t.Parallel()
		parents := FromRows([][]int{
			{1, 1, 1, 0, 0},
			{1, 1, 1, 0, 0},
			{1, 1, 1, 2, 2},
			{0, 0, 0, 2, 2},
			{0, 0, 0, 2, 2},
		})
		children := FromRows([][]int{
			{0, 3, 0, 0, 0},
			{0, 3, 0, 0, 0},
			{0, 0, 0, 0, 4},
			{0, 0, 0, 0, 4},
			{0, 0, 0, 0, 0},
		})

		got, err := Relate(parents, children)
		require.NoError(t, err)
		require.Equal(t, map[int]int{3: 1, 4: 2}, got)
	})

	t.Run("largest overlap wins", func(t *testing.T) {
		t.Parallel()
		parents := FromRows([][]int{
			{1, 1, 2, 2, 2},
		})
		children := FromRows([][]int{
			{0, 5, 5, 5, 0},
		})

		got, err := Relate(parents, children)
		require.NoError(t, err)
		// Child 5 shares one pixel with parent 1 and two with parent 2.
		require.Equal(t, map[int]int{5: 2}, got)
	})

	t.Run("exact overlap tie goes to the smallest parent id", func(t *testing.T) {
		t.Parallel()
		parents := FromRows([][]int{
			{7, 7, 3, 3},
		})
		children := FromRows([][]int{
			{0, 9, 9, 0},
		})

		got, err := Relate(parents, children)
		require.NoError(t, err)
		require.Equal(t, map[int]int{9: 3}, got)
	})

	t.Run("children over background only are omitted", func(t *testing.T) {
		t.Parallel()
		parents := FromRows([][]int{
			{1, 0, 0},
		})
		children := FromRows([][]int{
			{0, 0, 2},
		})

		got, err := Relate(parents, children)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("shape mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := Relate(New(2, 2), New(3, 3))
		require.Error(t, err)
		require.Contains(t, err.Error(), "shape mismatch")
	})
}

func TestNeighbours(t *testing.T) {
	t.Parallel()

	t.Run("finds objects within the neighbour distance", func(t *testing.T) {
		t.Parallel()
		img := FromRows([][]int{
			{1, 0, 0, 2, 0},
			{0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0},
			{3, 0, 0, 0, 0},
		})

		stats, err := Neighbours(img, 1, 3, 1)
		require.NoError(t, err)
		// Object 2 is three columns away, object 3 four rows away.
		require.Equal(t, []int{2}, stats.Neighbours)
	})

	t.Run("isolated object touches nothing", func(t *testing.T) {
		t.Parallel()
		img := FromRows([][]int{
			{0, 0, 0},
			{0, 1, 0},
			{0, 0, 0},
		})

		stats, err := Neighbours(img, 1, 1, 1)
		require.NoError(t, err)
		require.Empty(t, stats.Neighbours)
		require.Equal(t, 0.0, stats.FractionTouching)
	})

	t.Run("fully surrounded object touches everywhere", func(t *testing.T) {
		t.Parallel()
		img := FromRows([][]int{
			{2, 2, 2},
			{2, 1, 2},
			{2, 2, 2},
		})

		stats, err := Neighbours(img, 1, 1, 1)
		require.NoError(t, err)
		require.Equal(t, []int{2}, stats.Neighbours)
		require.Equal(t, 1.0, stats.FractionTouching)
	})

	t.Run("fraction stays within bounds for partial contact", func(t *testing.T) {
		t.Parallel()
		// Object 1 is a 2x2 square; object 2 touches it along one side only.
		img := FromRows([][]int{
			{1, 1, 2},
			{1, 1, 2},
			{0, 0, 0},
		})

		stats, err := Neighbours(img, 1, 1, 1)
		require.NoError(t, err)
		require.Equal(t, []int{2}, stats.Neighbours)
		require.Greater(t, stats.FractionTouching, 0.0)
		require.Less(t, stats.FractionTouching, 1.0)
	})

	t.Run("object filling the whole image reports zero touching", func(t *testing.T) {
		t.Parallel()
		img := FromRows([][]int{
			{1, 1},
			{1, 1},
		})

		stats, err := Neighbours(img, 1, 1, 1)
		require.NoError(t, err)
		require.Equal(t, 0.0, stats.FractionTouching)
	})

	t.Run("invalid arguments are rejected", func(t *testing.T) {
		t.Parallel()
		img := FromRows([][]int{{1}})

		_, err := Neighbours(img, 0, 1, 1)
		require.Error(t, err)

		_, err = Neighbours(img, 1, 0, 1)
		require.Error(t, err)

		_, err = Neighbours(img, 2, 1, 1)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not present")
	})
}

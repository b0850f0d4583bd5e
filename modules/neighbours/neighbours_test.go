package neighbours

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/labelimage"
	"github.com/ak/cellpipe/internal/registry"
)

func TestRegister_ManifestMatchesHandler(t *testing.T) {
	t.Parallel()

	r := registry.New()
	(&Module{}).Register(r)
	require.NoError(t, r.Validate(context.Background()))
}

func TestOnRunNeighbours(t *testing.T) {
	t.Parallel()

	img := labelimage.FromRows([][]int{
		{1, 1, 2},
		{1, 1, 2},
		{0, 0, 0},
	})

	out, err := OnRunNeighbours(context.Background(), &invoker.Call{Module: "neighbours"},
		&Input{Labels: img, NeighbourDistance: 2, TouchingDistance: 1})
	require.NoError(t, err)

	tbl := out.Stats
	require.Equal(t, []int{1, 2}, tbl.IDs())

	n1, err := tbl.Value(1, "n_neighbours")
	require.NoError(t, err)
	require.Equal(t, 1.0, n1)

	f1, err := tbl.Value(1, "fraction_touching")
	require.NoError(t, err)
	require.Greater(t, f1, 0.0)
	require.LessOrEqual(t, f1, 1.0)

	require.Nil(t, out.Plot)
}

func TestOnRunNeighbours_DiagnosticsFigure(t *testing.T) {
	t.Parallel()

	img := labelimage.FromRows([][]int{{1, 0, 2}})

	out, err := OnRunNeighbours(context.Background(), &invoker.Call{Module: "neighbours", Diagnostics: true},
		&Input{Labels: img, NeighbourDistance: 2, TouchingDistance: 1})
	require.NoError(t, err)

	require.NotNil(t, out.Plot)
	require.Equal(t, "neighbours", out.Plot.Title)
}

func TestOnRunNeighbours_InvalidDistances(t *testing.T) {
	t.Parallel()

	img := labelimage.FromRows([][]int{{1}})
	_, err := OnRunNeighbours(context.Background(), &invoker.Call{Module: "neighbours"},
		&Input{Labels: img, NeighbourDistance: 0, TouchingDistance: 1})
	require.Error(t, err)
}

package relate

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

func TestOnRunRelate(t *testing.T) {
	t.Parallel()

	parents := labelimage.FromRows([][]int{
		{1, 1, 0},
		{1, 1, 0},
		{0, 0, 2},
	})
	children := labelimage.FromRows([][]int{
		{3, 0, 0},
		{0, 0, 0},
		{0, 0, 4},
	})

	out, err := OnRunRelate(context.Background(), &invoker.Call{Module: "relate"}, &Input{Parents: parents, Children: children})
	require.NoError(t, err)

	tbl := out.Assignments
	require.Equal(t, []int{3, 4}, tbl.IDs())

	p, err := tbl.Value(3, "parent_id")
	require.NoError(t, err)
	require.Equal(t, 1.0, p)

	p, err = tbl.Value(4, "parent_id")
	require.NoError(t, err)
	require.Equal(t, 2.0, p)
}

func TestOnRunRelate_ShapeMismatch(t *testing.T) {
	t.Parallel()

	_, err := OnRunRelate(context.Background(), &invoker.Call{Module: "relate"},
		&Input{Parents: labelimage.New(2, 2), Children: labelimage.New(3, 3)})
	require.Error(t, err)
}

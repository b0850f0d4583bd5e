package threshold

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ak/cellpipe/internal/image"
	"github.com/ak/cellpipe/internal/invoker"
	"github.com/ak/cellpipe/internal/registry"
)

func TestRegister_ManifestMatchesHandler(t *testing.T) {
	t.Parallel()

	r := registry.New()
	(&Module{}).Register(r)
	require.NoError(t, r.Validate(context.Background()))
}

func TestOnRunThreshold(t *testing.T) {
	t.Parallel()

	img := image.New(2, 2)
	img.Set(0, 0, 0, 0.9)
	img.Set(1, 1, 0, 0.5)

	t.Run("marks pixels at or above the level", func(t *testing.T) {
		t.Parallel()
		out, err := OnRunThreshold(context.Background(), &invoker.Call{Module: "threshold"}, &Input{Image: img, Level: 0.5})
		require.NoError(t, err)

		require.Equal(t, 1, out.Mask.At(0, 0, 0))
		require.Equal(t, 1, out.Mask.At(1, 1, 0))
		require.Equal(t, 0, out.Mask.At(1, 0, 0))
		require.Nil(t, out.Plot, "no figure without diagnostics")
	})

	t.Run("produces a figure when diagnostics are on", func(t *testing.T) {
		t.Parallel()
		out, err := OnRunThreshold(context.Background(), &invoker.Call{Module: "threshold", Diagnostics: true}, &Input{Image: img, Level: 0.5})
		require.NoError(t, err)

		require.NotNil(t, out.Plot)
		require.Equal(t, "threshold", out.Plot.Title)
		require.Equal(t, 2, out.Plot.Data["foreground_pixels"])
	})
}

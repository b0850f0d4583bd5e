package model

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/ak/cellpipe/internal/handle"
)

// parseManifest is a test helper that parses manifest HCL from a string.
func parseManifest(t *testing.T, src string) ([]*ModuleDescriptor, error) {
	t.Helper()
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), "manifest.hcl")
	require.False(t, diags.HasErrors(), "fixture must be syntactically valid: %s", diags)
	return NewModules(context.Background(), hclFile, "manifest.hcl")
}

func TestModuleParsing_Success(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		hcl      string
		validate func(t *testing.T, d *ModuleDescriptor)
	}{
		{
			name: "full definition with typed inputs and outputs",
			hcl: `
			module "threshold" {
				version     = "1.0"
				language    = "go"
				description = "Binary threshold."

				lifecycle {
					on_run = "OnRunThreshold"
				}

				input "image" {
					kind = "image"
				}

				input "level" {
					kind    = "scalar"
					type    = number
					default = 0.5
				}

				output "mask" {
					kind = "label_image"
				}

				output "plot" {
					kind = "figure"
				}
			}
			`,
			validate: func(t *testing.T, d *ModuleDescriptor) {
				require.Equal(t, "threshold", d.Name)
				require.Equal(t, "1.0", d.Version)
				require.Equal(t, "go", d.Language)
				require.Equal(t, "OnRunThreshold", d.Lifecycle.OnRun)

				require.Equal(t, []string{"image", "level"}, d.InputOrder)
				image, ok := d.Input("image")
				require.True(t, ok)
				require.Equal(t, handle.KindImage, image.Kind)
				require.True(t, image.Required())

				level, ok := d.Input("level")
				require.True(t, ok)
				require.Equal(t, handle.KindScalar, level.Kind)
				require.Equal(t, cty.Number, level.ScalarType)
				require.False(t, level.Required())
				require.NotNil(t, level.Default)

				require.Equal(t, []string{"mask", "plot"}, d.OutputOrder)
				plot, ok := d.Output("plot")
				require.True(t, ok)
				require.Equal(t, handle.KindFigure, plot.Kind)
			},
		},
		{
			name: "minimal definition with only a lifecycle",
			hcl: `
			module "noop" {
				lifecycle {
					on_run = "OnRunNoop"
				}
			}
			`,
			validate: func(t *testing.T, d *ModuleDescriptor) {
				require.Empty(t, d.Description)
				require.Equal(t, "OnRunNoop", d.Lifecycle.OnRun)
				require.Empty(t, d.InputOrder)
				require.Empty(t, d.OutputOrder)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			descriptors, err := parseManifest(t, tc.hcl)
			require.NoError(t, err)
			require.Len(t, descriptors, 1)
			tc.validate(t, descriptors[0])
		})
	}
}

func TestModuleParsing_Failure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hcl  string
	}{
		{
			name: "missing lifecycle block",
			hcl: `
			module "broken" {
				input "image" { kind = "image" }
			}
			`,
		},
		{
			name: "duplicate input name",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "image" { kind = "image" }
				input "image" { kind = "image" }
			}
			`,
		},
		{
			name: "unknown handle kind",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "blob" { kind = "hologram" }
			}
			`,
		},
		{
			name: "scalar input without a type",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "level" { kind = "scalar" }
			}
			`,
		},
		{
			name: "non-scalar input with a type",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "image" {
					kind = "image"
					type = number
				}
			}
			`,
		},
		{
			name: "non-scalar input with a default",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "image" {
					kind    = "image"
					default = 1
				}
			}
			`,
		},
		{
			name: "default incompatible with scalar type",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "level" {
					kind    = "scalar"
					type    = number
					default = "not-a-number"
				}
			}
			`,
		},
		{
			name: "non-primitive scalar type",
			hcl: `
			module "broken" {
				lifecycle { on_run = "OnRunBroken" }
				input "level" {
					kind = "scalar"
					type = list(number)
				}
			}
			`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseManifest(t, tc.hcl)
			require.Error(t, err)
		})
	}
}

func TestPipelineParsing(t *testing.T) {
	t.Parallel()

	src := `
	pipeline "segmentation" {
		step "smooth" "blur" {
			arguments {
				image  = input.raw_image
				radius = 2
			}
		}

		step "threshold" "mask" {
			arguments {
				image = step.blur.smoothed_image
			}
		}
	}
	`
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), "pipeline.hcl")
	require.False(t, diags.HasErrors())

	specs, specDiags := ParsePipelineFile(context.Background(), hclFile, "pipeline.hcl")
	require.False(t, specDiags.HasErrors())

	spec, err := SinglePipeline(specs)
	require.NoError(t, err)
	require.Equal(t, "segmentation", spec.Name)
	require.Len(t, spec.Steps, 2)

	require.Equal(t, "smooth", spec.Steps[0].Module)
	require.Equal(t, "blur", spec.Steps[0].Name)
	require.Contains(t, spec.Steps[0].Arguments, "image")
	require.Contains(t, spec.Steps[0].Arguments, "radius")

	require.Equal(t, "threshold", spec.Steps[1].Module)
	require.Equal(t, "mask", spec.Steps[1].Name)
}

func TestSinglePipeline_RejectsZeroOrMany(t *testing.T) {
	t.Parallel()

	_, err := SinglePipeline(nil)
	require.Error(t, err)

	_, err = SinglePipeline([]*PipelineSpec{{Name: "a"}, {Name: "b"}})
	require.Error(t, err)
}

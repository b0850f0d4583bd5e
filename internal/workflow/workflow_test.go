package workflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/require"
)

// declaration returns a structurally valid two-stage declaration the failure
// cases below mutate.
func declaration() *Declaration {
	return &Declaration{
		Name:   "screening",
		Stages: []string{"analysis", "aggregation"},
		StageModes: map[string]Mode{
			"analysis":    ModeParallel,
			"aggregation": ModeSequential,
		},
		StepsPerStage: map[string][]string{
			"analysis":    {"segment_nuclei", "segment_cells", "relate_compartments"},
			"aggregation": {"collect_features"},
		},
		InterStageDeps: map[string][]string{
			"aggregation": {"analysis"},
		},
		IntraStageDeps: map[string][]string{
			"relate_compartments": {"segment_nuclei", "segment_cells"},
		},
	}
}

func TestValidate_AcceptsValidDeclaration(t *testing.T) {
	t.Parallel()

	typ, err := Validate(declaration())
	require.NoError(t, err)

	require.Equal(t, "screening", typ.Name())
	require.Equal(t, []string{"analysis", "aggregation"}, typ.Stages())
	require.Equal(t, ModeParallel, typ.Mode("analysis"))
	require.Equal(t, []string{"collect_features"}, typ.Steps("aggregation"))
	require.Equal(t, []string{"analysis"}, typ.StageDeps("aggregation"))
	require.Equal(t, []string{"segment_nuclei", "segment_cells"}, typ.StepDeps("relate_compartments"))

	stage, ok := typ.StageOf("segment_cells")
	require.True(t, ok)
	require.Equal(t, "analysis", stage)

	_, ok = typ.StageOf("unknown_step")
	require.False(t, ok)
}

func TestValidate_RejectsMalformedDeclarations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		mutate    func(d *Declaration)
		attribute string
	}{
		{
			name:      "missing name",
			mutate:    func(d *Declaration) { d.Name = "" },
			attribute: "name",
		},
		{
			name:      "no stages",
			mutate:    func(d *Declaration) { d.Stages = nil },
			attribute: "stages",
		},
		{
			name:      "missing stage modes attribute",
			mutate:    func(d *Declaration) { d.StageModes = nil },
			attribute: "stage_modes",
		},
		{
			name:      "missing steps attribute",
			mutate:    func(d *Declaration) { d.StepsPerStage = nil },
			attribute: "steps_per_stage",
		},
		{
			name:      "missing inter-stage dependency attribute",
			mutate:    func(d *Declaration) { d.InterStageDeps = nil },
			attribute: "inter_stage_dependencies",
		},
		{
			name:      "missing intra-stage dependency attribute",
			mutate:    func(d *Declaration) { d.IntraStageDeps = nil },
			attribute: "intra_stage_dependencies",
		},
		{
			name:      "duplicate stage",
			mutate:    func(d *Declaration) { d.Stages = append(d.Stages, "analysis") },
			attribute: "stages",
		},
		{
			name: "stage without steps",
			mutate: func(d *Declaration) {
				d.StepsPerStage["analysis"] = nil
			},
			attribute: "steps_per_stage",
		},
		{
			name: "steps for an undeclared stage",
			mutate: func(d *Declaration) {
				d.StepsPerStage["export"] = []string{"write_csv"}
			},
			attribute: "steps_per_stage",
		},
		{
			name: "step declared in two stages",
			mutate: func(d *Declaration) {
				d.StepsPerStage["aggregation"] = append(d.StepsPerStage["aggregation"], "segment_cells")
			},
			attribute: "steps_per_stage",
		},
		{
			name: "stage without a mode",
			mutate: func(d *Declaration) {
				delete(d.StageModes, "analysis")
			},
			attribute: "stage_modes",
		},
		{
			name: "invalid mode",
			mutate: func(d *Declaration) {
				d.StageModes["analysis"] = Mode("turbo")
			},
			attribute: "stage_modes",
		},
		{
			name: "mode for an undeclared stage",
			mutate: func(d *Declaration) {
				d.StageModes["export"] = ModeSequential
			},
			attribute: "stage_modes",
		},
		{
			name: "stage dependency on undeclared stage",
			mutate: func(d *Declaration) {
				d.InterStageDeps["analysis"] = []string{"ingest"}
			},
			attribute: "inter_stage_dependencies",
		},
		{
			name: "stage dependency cycle",
			mutate: func(d *Declaration) {
				d.InterStageDeps["analysis"] = []string{"aggregation"}
			},
			attribute: "inter_stage_dependencies",
		},
		{
			name: "step dependency on undeclared step",
			mutate: func(d *Declaration) {
				d.IntraStageDeps["segment_cells"] = []string{"ghost_step"}
			},
			attribute: "intra_stage_dependencies",
		},
		{
			name: "step dependency crossing stages",
			mutate: func(d *Declaration) {
				d.IntraStageDeps["collect_features"] = []string{"segment_cells"}
			},
			attribute: "intra_stage_dependencies",
		},
		{
			name: "step dependency cycle",
			mutate: func(d *Declaration) {
				d.IntraStageDeps["segment_nuclei"] = []string{"segment_cells"}
				d.IntraStageDeps["segment_cells"] = []string{"segment_nuclei"}
			},
			attribute: "intra_stage_dependencies",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			d := declaration()
			tc.mutate(d)

			_, err := Validate(d)
			require.Error(t, err)

			var declErr *DeclarationError
			require.ErrorAs(t, err, &declErr)
			require.Equal(t, tc.attribute, declErr.Attribute)
		})
	}
}

func TestValidate_ToleratesRepeatedDependencyEntries(t *testing.T) {
	t.Parallel()

	d := declaration()
	d.IntraStageDeps["relate_compartments"] = []string{"segment_nuclei", "segment_nuclei"}

	_, err := Validate(d)
	require.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("registered type becomes queryable", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		typ, err := r.Register(declaration())
		require.NoError(t, err)

		got, err := r.Get("screening")
		require.NoError(t, err)
		require.Same(t, typ, got)
		require.Equal(t, []string{"screening"}, r.List())
	})

	t.Run("rejected declaration never becomes queryable", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		d := declaration()
		d.InterStageDeps["analysis"] = []string{"aggregation"} // cycle

		_, err := r.Register(d)
		require.Error(t, err)

		_, err = r.Get("screening")
		var lookupErr *LookupError
		require.ErrorAs(t, err, &lookupErr)
		require.Equal(t, "screening", lookupErr.Name)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		_, err := r.Register(declaration())
		require.NoError(t, err)

		_, err = r.Register(declaration())
		require.Error(t, err)
	})

	t.Run("unknown name yields a lookup error", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry()

		_, err := r.Get("nonexistent")
		var lookupErr *LookupError
		require.ErrorAs(t, err, &lookupErr)
	})
}

func TestParseWorkflowFile(t *testing.T) {
	t.Parallel()

	src := `
	workflow "screening" {
		stage "analysis" {
			mode  = "parallel"
			steps = ["segment_nuclei", "segment_cells", "relate_compartments"]

			dependencies {
				relate_compartments = ["segment_nuclei", "segment_cells"]
			}
		}

		stage "aggregation" {
			mode       = "sequential"
			steps      = ["collect_features"]
			depends_on = ["analysis"]
		}
	}
	`
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), "workflow.hcl")
	require.False(t, diags.HasErrors())

	decls, declDiags := ParseWorkflowFile(context.Background(), hclFile, "workflow.hcl")
	require.False(t, declDiags.HasErrors())
	require.Len(t, decls, 1)

	typ, err := Validate(decls[0])
	require.NoError(t, err)
	require.Equal(t, "screening", typ.Name())
	require.Equal(t, ModeParallel, typ.Mode("analysis"))
	require.Equal(t, []string{"segment_nuclei", "segment_cells"}, typ.StepDeps("relate_compartments"))
	require.Equal(t, []string{"analysis"}, typ.StageDeps("aggregation"))
}

func TestWriteDOT(t *testing.T) {
	t.Parallel()

	typ, err := Validate(declaration())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, typ))

	out := buf.String()
	require.Contains(t, out, "stage.analysis")
	require.Contains(t, out, "stage.aggregation")
	require.Contains(t, out, "collect_features")
}

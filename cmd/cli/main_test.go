package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_StartupPanicRecovery(t *testing.T) {
	t.Parallel()

	// A workflows directory containing unparseable HCL makes app startup
	// panic; run must recover and return it as an ordinary error.
	tempDir := t.TempDir()
	brokenPath := filepath.Join(tempDir, "broken.hcl")
	require.NoError(t, os.WriteFile(brokenPath, []byte(`workflow "bad" {`), 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{"-workflows-path", tempDir, "pipeline.hcl"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "application startup panicked")
}

func TestRun_HelpExitsCleanly(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	require.NoError(t, run(out, []string{"-h"}))
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_CLIErrorsPropagate(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, []string{"-log-format", "xml", "pipeline.hcl"})
	require.Error(t, err)
}

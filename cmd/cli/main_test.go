package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// A document whose edge points at a node that does not exist makes
	// app.NewApp panic while importing the flow.
	invalidFlow := `{"nodes": [], "edges": [{"id": "e", "source": "a", "target": "b"}]}`
	filePath := filepath.Join(t.TempDir(), "flow.json")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidFlow), 0600))

	out := &bytes.Buffer{}
	runErr := run(context.Background(), out, []string{filePath})

	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to import flow")
}

func TestRun_BadManifests(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	flowPath := filepath.Join(dir, "flow.json")
	require.NoError(t, os.WriteFile(flowPath, []byte(`{"nodes": [], "edges": []}`), 0600))
	manifest := filepath.Join(dir, "broken.hcl")
	require.NoError(t, os.WriteFile(manifest, []byte(`processor "x" {`), 0600))

	runErr := run(context.Background(), &bytes.Buffer{}, []string{"-processors-path", manifest, flowPath})

	require.Error(t, runErr)
	require.Contains(t, runErr.Error(), "failed to load processor manifests")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

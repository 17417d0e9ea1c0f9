package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/rtgraph/internal/cli"
	"github.com/specialistvlad/rtgraph/internal/processing"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/stretchr/testify/require"
)

// brokenModule declares parameters that are not a struct pointer, which the
// registry rejects with a panic.
type brokenModule struct{}

func (brokenModule) Register(r *registry.Registry) {
	r.RegisterProcessor("broken", &registry.RegisteredProcessor{
		NewParams: func() any { return 42 },
		New: func(context.Context, registry.Args) (processing.Processable, error) {
			return nil, errors.New("unreachable")
		},
	})
}

func writePatch(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600), "failed to set up test file")
	return path
}

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writePatch(t, `node "broken" "b" {}`)
	args := []string{"graph", path}
	out := &bytes.Buffer{}

	// --- Act ---
	// Call the run function, which should recover the panic and return it as an error.
	runErr := run(context.Background(), out, out, args, brokenModule{})

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	require.Contains(t, runErr.Error(), "application startup panicked", "The error message should indicate that a panic was recovered.")
	require.Contains(t, runErr.Error(), "NewParams must return a pointer to a struct", "The error message should contain the underlying reason for the panic.")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error for help")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"run", "--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_InvalidPatch(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := writePatch(t, `node "sine" "osc" {`)
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, out, []string{"graph", path})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse")
}

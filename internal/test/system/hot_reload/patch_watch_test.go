package system

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/rtgraph/internal/app"
	"github.com/specialistvlad/rtgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const enginePatch = `
node "sine" "osc" {
  frequency = 440
}

node "output" "main" {
  inputs = [node.osc]
}
`

// Test for: Editing a watched patch swaps the live graph without stopping the engine.
func TestHotReload_PatchWatch(t *testing.T) {
	// --- Arrange ---
	dir := testutil.WriteFiles(t, map[string]string{
		"engine.hcl": `
engine {
  threads = 2
}

patch {
  paths    = ["patches"]
  watch    = true
  debounce = "20ms"
}
`,
		"patches/main.hcl": enginePatch,
	})
	testApp, logs := app.SetupAppTest(t, &app.Config{EnginePath: filepath.Join(dir, "engine.hcl"), Roll: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- testApp.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Watching patch files.")
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, uint64(1), testApp.Scheduler().Generation())

	// --- Act ---
	updated := enginePatch + `
node "gain" "quiet" {
  inputs = [node.osc]
  gain   = 0.1
}
`
	patchPath := filepath.Join(dir, "patches", "main.hcl")
	require.NoError(t, os.WriteFile(patchPath, []byte(updated), 0644))

	// --- Assert ---
	require.Eventually(t, func() bool {
		g := testApp.Scheduler().Graph()
		return g != nil && g.Len() == 3
	}, 5*time.Second, 10*time.Millisecond, "graph was not reloaded")
	reloaded := testApp.Scheduler().Generation()
	assert.GreaterOrEqual(t, reloaded, uint64(2))

	// A broken edit keeps the running graph.
	require.NoError(t, os.WriteFile(patchPath, []byte(`node "output" "main" { inputs = [node.gone] }`), 0644))
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Patch reload failed, keeping current graph.")
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, reloaded, testApp.Scheduler().Generation())
	assert.Equal(t, 3, testApp.Scheduler().Graph().Len())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Greater(t, testApp.Engine().Snapshot().Cycles, uint64(0))
}

package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/rtgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFiles(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"b.hcl":        "",
		"a.hcl":        "",
		"notes.txt":    "",
		"sub/c.hcl":    "",
		"sub/deep.hcl": "",
	})

	t.Run("directory is searched recursively", func(t *testing.T) {
		files, err := ResolveFiles(".hcl", dir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.hcl"),
			filepath.Join(dir, "b.hcl"),
			filepath.Join(dir, "sub", "c.hcl"),
			filepath.Join(dir, "sub", "deep.hcl"),
		}, files)
	})

	t.Run("duplicates are dropped", func(t *testing.T) {
		files, err := ResolveFiles(".hcl", filepath.Join(dir, "a.hcl"), dir+"/./a.hcl", filepath.Join(dir, "sub"))
		require.NoError(t, err)
		assert.Len(t, files, 3)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ResolveFiles(".hcl", filepath.Join(dir, "missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong extension", func(t *testing.T) {
		_, err := ResolveFiles(".hcl", filepath.Join(dir, "notes.txt"))
		assert.ErrorContains(t, err, "does not have the .hcl extension")
	})
}

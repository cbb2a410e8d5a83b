package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	root := t.TempDir()
	for _, name := range []string{"b.scad", "a.scad", "notes.txt", "parts/gear.scad", ".git/hook.scad"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("cube(1);"), 0o644))
	}

	// --- Act ---
	files, err := FindFilesByExtension(root, ".scad")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.scad"),
		filepath.Join(root, "b.scad"),
		filepath.Join(root, "parts", "gear.scad"),
	}, files)
}

func TestFindFilesByExtension_Errors(t *testing.T) {
	t.Parallel()

	_, err := FindFilesByExtension(t.TempDir(), "")
	assert.Error(t, err)

	_, err = FindFilesByExtension(filepath.Join(t.TempDir(), "missing"), ".scad")
	assert.Error(t, err)
}

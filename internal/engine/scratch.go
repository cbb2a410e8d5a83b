package engine

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/hack-pad/hackpadfs"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// Scratch file locations inside the engine filesystem. They are shared by
// every call, which is safe only because calls are sequenced.
const (
	InputPath          = "/input.scad"
	OutputPath         = "/output.stl"
	ValidateOutputPath = "/output.echo"
)

// NormPath converts a rooted engine path into the unrooted form io/fs style
// filesystems require.
func NormPath(p string) string {
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

func writeScratch(fsys hackpadfs.FS, name, content string) error {
	return hackpadfs.WriteFullFile(fsys, NormPath(name), []byte(content), 0o644)
}

func readScratch(fsys hackpadfs.FS, name string) ([]byte, error) {
	return hackpadfs.ReadFile(fsys, NormPath(name))
}

// removeScratch deletes the named files, ignoring ones that do not exist.
func removeScratch(ctx context.Context, fsys hackpadfs.FS, names ...string) {
	logger := ctxlog.FromContext(ctx)
	for _, name := range names {
		err := hackpadfs.Remove(fsys, NormPath(name))
		if err != nil && !errors.Is(err, hackpadfs.ErrNotExist) {
			logger.Warn("Failed to remove scratch file.", "path", name, "error", err)
		}
	}
}

// Exists reports whether the named scratch file is present. Tests use it to
// check for residue between calls.
func Exists(fsys hackpadfs.FS, name string) bool {
	_, err := hackpadfs.Stat(fsys, NormPath(name))
	return err == nil
}

// Package procengine runs a native compiler binary as a child process, one
// process per call, inside a private scratch directory.
package procengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/hack-pad/hackpadfs"
	hackos "github.com/hack-pad/hackpadfs/os"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/engine"
)

// Loader resolves the binary and creates the scratch directory.
type Loader struct {
	Binary     string
	ScratchDir string
}

// Load implements engine.Loader.
func (l Loader) Load(ctx context.Context) (engine.Engine, error) {
	return New(ctx, l.Binary, l.ScratchDir)
}

// Engine invokes Binary with scratch paths rewritten into its directory.
type Engine struct {
	binary string
	dir    string
	fs     hackpadfs.FS

	mu   sync.Mutex
	hook func(string)
}

// New checks that binary can be found and prepares a scratch directory
// under parent.
func New(ctx context.Context, binary, parent string) (*Engine, error) {
	if binary == "" {
		return nil, errors.New("no compiler binary configured")
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("compiler not found: %w", err)
	}
	if resolved, err = filepath.Abs(resolved); err != nil {
		return nil, fmt.Errorf("failed to resolve compiler path: %w", err)
	}

	dir, err := os.MkdirTemp(parent, "scadlive-proc-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	fsys, err := hackos.NewFS().Sub(engine.NormPath(dir))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open scratch dir: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Resolved compiler binary.", "path", resolved, "scratch_dir", dir)
	return &Engine{binary: resolved, dir: dir, fs: fsys}, nil
}

// FS implements engine.Engine.
func (e *Engine) FS() hackpadfs.FS { return e.fs }

// SetErrorHook implements engine.Engine.
func (e *Engine) SetErrorHook(hook func(string)) func(string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.hook
	e.hook = hook
	return prev
}

func (e *Engine) emit(line string) {
	e.mu.Lock()
	hook := e.hook
	e.mu.Unlock()
	if hook != nil {
		hook(line)
	}
}

// hostArgs maps the rooted scratch paths onto the scratch directory.
func (e *Engine) hostArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch a {
		case engine.InputPath, engine.OutputPath, engine.ValidateOutputPath:
			out[i] = filepath.Join(e.dir, filepath.FromSlash(engine.NormPath(a)))
		default:
			out[i] = a
		}
	}
	return out
}

// CallMain runs the binary once. Stderr feeds the error hook; stdout is only
// logged.
func (e *Engine) CallMain(ctx context.Context, args []string) (int, error) {
	stderr := engine.NewLineWriter(e.emit)
	defer stderr.Flush()
	stdout := engine.NewDebugWriter(ctx, "stdout")
	defer stdout.Flush()

	cmd := exec.CommandContext(ctx, e.binary, e.hostArgs(args)...)
	cmd.Dir = e.dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		return code, &engine.ExitStatusError{Code: code}
	default:
		return -1, fmt.Errorf("failed to run compiler: %w", err)
	}
}

// Close removes the scratch directory.
func (e *Engine) Close(context.Context) error {
	return os.RemoveAll(e.dir)
}

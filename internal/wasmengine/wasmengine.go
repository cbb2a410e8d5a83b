package wasmengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hack-pad/hackpadfs"
	hackos "github.com/hack-pad/hackpadfs/os"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/engine"
)

// programName is argv[0] for every instance.
const programName = "openscad"

// Loader reads and compiles the WASI binary at Path.
type Loader struct {
	Path string
	// ScratchDir is the parent of the per-engine scratch directory. Empty
	// means os.TempDir.
	ScratchDir string
}

// Load implements engine.Loader.
func (l Loader) Load(ctx context.Context) (engine.Engine, error) {
	if l.Path == "" {
		return nil, errors.New("no wasm module configured")
	}
	code, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm module: %w", err)
	}
	return New(ctx, code, l.ScratchDir)
}

// Engine is a compiled WASI module plus its scratch directory.
type Engine struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	dir      string
	fs       hackpadfs.FS

	mu   sync.Mutex
	hook func(string)
}

// New compiles code and prepares a scratch directory under parent.
func New(ctx context.Context, code []byte, parent string) (*Engine, error) {
	logger := ctxlog.FromContext(ctx)

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to compile wasm module: %w", err)
	}

	dir, err := os.MkdirTemp(parent, "scadlive-wasm-")
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	fsys, err := hackos.NewFS().Sub(engine.NormPath(dir))
	if err != nil {
		_ = rt.Close(ctx)
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to open scratch dir: %w", err)
	}

	logger.Debug("Compiled wasm module.", "scratch_dir", dir, "imports", len(compiled.ImportedFunctions()))
	return &Engine{rt: rt, compiled: compiled, dir: dir, fs: fsys}, nil
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

// CallMain runs the module's _start with args. Only stderr reaches the error
// hook. A non-zero proc_exit is reported as *engine.ExitStatusError.
func (e *Engine) CallMain(ctx context.Context, args []string) (int, error) {
	stderr := engine.NewLineWriter(e.emit)
	defer stderr.Flush()
	stdout := engine.NewDebugWriter(ctx, "stdout")
	defer stdout.Flush()

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{programName}, args...)...).
		WithStderr(stderr).
		WithStdout(stdout).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(e.dir, "/"))

	mod, err := e.rt.InstantiateModule(ctx, e.compiled, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	var exitErr *sys.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		code := int(exitErr.ExitCode())
		if code == 0 {
			return 0, nil
		}
		return code, &engine.ExitStatusError{Code: code}
	default:
		return -1, err
	}
}

// Close releases the runtime and removes the scratch directory.
func (e *Engine) Close(ctx context.Context) error {
	err := e.rt.Close(ctx)
	return errors.Join(err, os.RemoveAll(e.dir))
}

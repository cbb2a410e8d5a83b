package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/mesh"
	"github.com/specialistvlad/scadlive/internal/sequencer"
)

// Config tunes the engine invocations.
type Config struct {
	// RenderFlags are appended to full-geometry compile calls.
	RenderFlags []string
	// ValidateFlags are appended to validate calls.
	ValidateFlags []string
	// Timeout bounds one operation. Zero disables it.
	Timeout time.Duration
}

// DefaultConfig returns the flags used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RenderFlags:   []string{"--render"},
		ValidateFlags: []string{"--preview"},
		Timeout:       60 * time.Second,
	}
}

// CompileOutput is a successful compile.
type CompileOutput struct {
	Mesh *mesh.Mesh
	// Log holds the error-channel lines; warnings can accompany success.
	Log []string
	// ExitCode is what the engine reported, kept only for diagnostics.
	ExitCode int
}

// Validation is the result of a validate-only call.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Handle serializes compile and validate calls against a Session's engine.
type Handle struct {
	session *Session
	seq     *sequencer.Sequencer
	cfg     Config
}

// NewHandle wires a session to the sequencer that guards it.
func NewHandle(session *Session, seq *sequencer.Sequencer, cfg Config) *Handle {
	return &Handle{session: session, seq: seq, cfg: cfg}
}

// Ready ensures the engine is loaded.
func (h *Handle) Ready(ctx context.Context) error {
	_, err := h.session.Ready(ctx)
	return err
}

// Status reports the session state.
func (h *Handle) Status() Status {
	return h.session.Status()
}

// Compile renders src to a mesh. Failures that come from the engine are
// *NoGeometryError values carrying the captured log.
func (h *Handle) Compile(ctx context.Context, src string) (*CompileOutput, error) {
	return sequencer.Do(ctx, h.seq, func(ctx context.Context) (*CompileOutput, error) {
		return h.compile(ctx, src)
	})
}

// Validate checks src with the faster preview evaluation and no geometry
// output. The returned error is reserved for load, timeout and scratch
// failures; engine complaints are reported in the Validation.
func (h *Handle) Validate(ctx context.Context, src string) (Validation, error) {
	return sequencer.Do(ctx, h.seq, func(ctx context.Context) (Validation, error) {
		return h.validate(ctx, src)
	})
}

func (h *Handle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.cfg.Timeout)
}

// aborted maps a done operation context to the error the caller sees.
func (h *Handle) aborted(parent, op context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(op.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, h.cfg.Timeout)
	}
	return op.Err()
}

func (h *Handle) compile(parent context.Context, src string) (*CompileOutput, error) {
	logger := ctxlog.FromContext(parent)
	eng, err := h.session.Ready(parent)
	if err != nil {
		return nil, err
	}
	ctx, cancel := h.withTimeout(parent)
	defer cancel()

	fsys := eng.FS()
	removeScratch(ctx, fsys, InputPath, OutputPath)
	defer removeScratch(ctx, fsys, InputPath, OutputPath)

	if err := writeScratch(fsys, InputPath, src); err != nil {
		return nil, fmt.Errorf("failed to write engine input: %w", err)
	}

	args := append([]string{InputPath, "-o", OutputPath, "--export-format=binstl"}, h.cfg.RenderFlags...)
	log := &Log{}
	start := time.Now()
	code, callErr := invoke(ctx, eng, args, log)
	logger.Debug("Engine compile call returned.", "status", code, "error", callErr, "log_lines", len(log.Lines()), "took", time.Since(start).Round(time.Millisecond))

	if ctx.Err() != nil {
		return nil, h.aborted(parent, ctx)
	}

	// The artifact is inspected no matter what the call reported.
	data, readErr := readScratch(fsys, OutputPath)
	fail := func(reason string, cause error) (*CompileOutput, error) {
		if code != 0 {
			log.Append(fmt.Sprintf("engine exited with status %d", code))
		}
		return nil, &NoGeometryError{Reason: reason, Log: log.Lines(), ExitCode: code, Cause: cause}
	}
	switch {
	case readErr != nil:
		cause := readErr
		if callErr != nil && !isExitStatus(callErr) {
			cause = callErr
		}
		return fail("engine produced no output file", cause)
	case len(data) == 0:
		return fail("engine produced an empty output file", nil)
	}

	m, err := mesh.Decode(data)
	if err != nil {
		return fail("engine output is not a valid mesh", err)
	}
	if m.TriangleCount() == 0 {
		return fail("rendered model contains no triangles", nil)
	}

	if code != 0 || callErr != nil {
		logger.Debug("Ignoring engine exit signal, artifact is valid.", "status", code, "error", callErr)
	}
	return &CompileOutput{Mesh: m, Log: log.Lines(), ExitCode: code}, nil
}

func (h *Handle) validate(parent context.Context, src string) (Validation, error) {
	eng, err := h.session.Ready(parent)
	if err != nil {
		return Validation{}, err
	}
	ctx, cancel := h.withTimeout(parent)
	defer cancel()

	fsys := eng.FS()
	removeScratch(ctx, fsys, InputPath, ValidateOutputPath)
	defer removeScratch(ctx, fsys, InputPath, ValidateOutputPath)

	if err := writeScratch(fsys, InputPath, src); err != nil {
		return Validation{}, fmt.Errorf("failed to write engine input: %w", err)
	}

	args := append([]string{InputPath, "-o", ValidateOutputPath, "--export-format=echo"}, h.cfg.ValidateFlags...)
	log := &Log{}
	code, callErr := invoke(ctx, eng, args, log)
	if ctx.Err() != nil {
		return Validation{}, h.aborted(parent, ctx)
	}

	lines := log.Lines()
	clean := code == 0 && (callErr == nil || isExitStatus(callErr))
	if clean && len(lines) == 0 {
		return Validation{Valid: true}, nil
	}
	if len(lines) == 0 {
		if callErr != nil {
			lines = []string{callErr.Error()}
		} else {
			lines = []string{fmt.Sprintf("engine exited with status %d", code)}
		}
	}
	return Validation{Valid: false, Errors: lines}, nil
}

// invoke calls the entry point with log bound to the error hook for exactly
// the duration of the call. Panics inside the engine become errors.
func invoke(ctx context.Context, eng Engine, args []string, log *Log) (code int, err error) {
	prev := eng.SetErrorHook(log.Append)
	defer eng.SetErrorHook(prev)
	defer func() {
		if r := recover(); r != nil {
			code, err = -1, fmt.Errorf("engine panicked: %v", r)
		}
	}()

	code, err = eng.CallMain(ctx, args)
	var exitErr *ExitStatusError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}
	return code, err
}

func isExitStatus(err error) bool {
	var exitErr *ExitStatusError
	return errors.As(err, &exitErr)
}

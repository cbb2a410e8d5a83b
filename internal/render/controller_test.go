package render_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/scadlive/internal/diag"
	"github.com/specialistvlad/scadlive/internal/engine"
	"github.com/specialistvlad/scadlive/internal/mesh"
	"github.com/specialistvlad/scadlive/internal/render"
	"github.com/specialistvlad/scadlive/internal/sequencer"
	"github.com/specialistvlad/scadlive/internal/testutil"
)

// fakeBackend lets tests run compiles concurrently and out of order, which a
// real sequenced handle never would.
type fakeBackend struct {
	mu       sync.Mutex
	status   engine.Status
	readyErr error
	compile  func(ctx context.Context, src string) (*engine.CompileOutput, error)
	compiles []string
	validate int
}

func (b *fakeBackend) Ready(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readyErr != nil {
		b.status = engine.Failed
		return b.readyErr
	}
	b.status = engine.Ready
	return nil
}

func (b *fakeBackend) Status() engine.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *fakeBackend) Compile(ctx context.Context, src string) (*engine.CompileOutput, error) {
	b.mu.Lock()
	b.compiles = append(b.compiles, src)
	fn := b.compile
	b.mu.Unlock()
	if fn == nil {
		return &engine.CompileOutput{Mesh: testutil.CubeMesh(1)}, nil
	}
	return fn(ctx, src)
}

func (b *fakeBackend) Validate(context.Context, string) (engine.Validation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validate++
	return engine.Validation{Valid: true}, nil
}

func (b *fakeBackend) Compiles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.compiles...)
}

// realStack wires a controller to an engine handle over a fake engine.
func realStack(t *testing.T, h testutil.Handler) (*render.Controller, *testutil.FakeEngine, *sequencer.Sequencer) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	fake := testutil.NewFakeEngine(h)
	seq := sequencer.New()
	t.Cleanup(seq.Close)
	handle := engine.NewHandle(engine.NewSession(&testutil.FakeLoader{Engine: fake}), seq, engine.DefaultConfig())
	c := render.New(ctx, handle, render.Config{Debounce: 20 * time.Millisecond})
	t.Cleanup(c.Close)
	return c, fake, seq
}

func TestRenderNow_HoledCubeRenders(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	c, fake, _ := realStack(t, testutil.Succeed(testutil.CubeSTL(20), 0))
	ctx, _ := testutil.Context(t)

	// --- Act ---
	snap := c.RenderNow(ctx, testutil.HoledCubeSource)

	// --- Assert ---
	assert.Equal(t, render.Rendered, snap.State)
	require.NotNil(t, snap.Mesh)
	assert.Greater(t, snap.Mesh.TriangleCount(), 0)
	assert.Empty(t, snap.Error)
	assert.False(t, snap.IsRendering)
	assert.False(t, snap.IsLoading)
	assert.Len(t, fake.Calls(), 1)
}

func TestRenderNow_UnclosedParenNeverReachesEngine(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	c, fake, seq := realStack(t, testutil.Succeed(testutil.CubeSTL(1), 0))
	ctx, _ := testutil.Context(t)

	// --- Act ---
	snap := c.RenderNow(ctx, "cube([10,10,10]")

	// --- Assert ---
	assert.Equal(t, render.LintFailed, snap.State)
	errs := diag.Filter(snap.Diagnostics, diag.Error)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "(")
	assert.Equal(t, diag.StaticLint, errs[0].Origin)
	assert.EqualValues(t, 0, seq.Submitted())
	assert.Empty(t, fake.Calls())
}

func TestRenderNow_StrayCloserReportsOneError(t *testing.T) {
	t.Parallel()
	c, _, seq := realStack(t, nil)
	ctx, _ := testutil.Context(t)

	snap := c.RenderNow(ctx, "cube(10));")

	assert.Equal(t, render.LintFailed, snap.State)
	errs := diag.Filter(snap.Diagnostics, diag.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Line)
	assert.Equal(t, 9, errs[0].Column)
	assert.EqualValues(t, 0, seq.Submitted())
}

func TestRenderNow_BlankSourceIsIdle(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	backend := &fakeBackend{}
	ctx, _ := testutil.Context(t)
	c := render.New(ctx, backend, render.Config{})
	t.Cleanup(c.Close)
	c.RenderNow(ctx, "cube(1);")

	// --- Act ---
	snap := c.RenderNow(ctx, "  \n\t")

	// --- Assert ---
	assert.Equal(t, render.Idle, snap.State)
	assert.Nil(t, snap.Mesh)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Diagnostics)
	assert.Len(t, backend.Compiles(), 1, "blank text must not reach the engine")
}

func TestRenderNow_EmptySourceNeverLoadsEngine(t *testing.T) {
	t.Parallel()
	c, fake, seq := realStack(t, nil)
	ctx, _ := testutil.Context(t)

	snap := c.RenderNow(ctx, "")

	assert.Equal(t, render.Idle, snap.State)
	assert.Nil(t, snap.Mesh)
	assert.EqualValues(t, 0, seq.Submitted())
	assert.Empty(t, fake.Calls())
}

func TestRenderNow_LyingExitStatusStillRenders(t *testing.T) {
	t.Parallel()
	c, _, _ := realStack(t, func(_ context.Context, call *testutil.Call) (int, error) {
		if err := call.WriteOutput(testutil.CubeSTL(10)); err != nil {
			return -1, err
		}
		return 1, &engine.ExitStatusError{Code: 1}
	})
	ctx, _ := testutil.Context(t)

	snap := c.RenderNow(ctx, "cube(10);")

	assert.Equal(t, render.Rendered, snap.State)
	assert.Equal(t, 12, snap.Mesh.TriangleCount())
}

func TestRenderNow_FailureKeepsMeshAndParsesLog(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	c, fake, _ := realStack(t, testutil.Succeed(testutil.CubeSTL(3), 0))
	ctx, _ := testutil.Context(t)
	first := c.RenderNow(ctx, "cube(3);")
	require.Equal(t, render.Rendered, first.State)
	fake.Handler = testutil.Fail(1, "ERROR: Parser error in file input.scad, line 2: syntax error")

	// --- Act ---
	snap := c.RenderNow(ctx, "cube(3);\nfoo = ;")

	// --- Assert ---
	assert.Equal(t, render.RenderFailed, snap.State)
	assert.Same(t, first.Mesh, snap.Mesh)
	assert.Contains(t, snap.Error, "engine produced no output file")
	assert.Contains(t, snap.Logs, "ERROR: Parser error in file input.scad, line 2: syntax error")
	engineDiags := []diag.Diagnostic{}
	for _, d := range snap.Diagnostics {
		if d.Origin == diag.EngineOutput {
			engineDiags = append(engineDiags, d)
		}
	}
	require.Len(t, engineDiags, 1)
	assert.Equal(t, 2, engineDiags[0].Line)
	assert.Equal(t, diag.Error, engineDiags[0].Severity)
}

func TestRenderNow_SuccessClearsEngineDiagnostics(t *testing.T) {
	t.Parallel()
	c, fake, _ := realStack(t, testutil.Fail(1, "ERROR: Parser error in file input.scad, line 1: syntax error"))
	ctx, _ := testutil.Context(t)
	failed := c.RenderNow(ctx, "cube(1);")
	require.Equal(t, render.RenderFailed, failed.State)
	fake.Handler = testutil.Succeed(testutil.CubeSTL(1), 0)

	snap := c.RenderNow(ctx, "cube(1);")

	assert.Equal(t, render.Rendered, snap.State)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Diagnostics)
}

func TestRenderNow_InitFailureIsReported(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	seq := sequencer.New()
	t.Cleanup(seq.Close)
	handle := engine.NewHandle(engine.NewSession(&testutil.FakeLoader{Err: errors.New("wasm missing")}), seq, engine.DefaultConfig())
	c := render.New(ctx, handle, render.Config{})
	t.Cleanup(c.Close)
	var states []render.State
	c.Subscribe(func(s render.Snapshot) { states = append(states, s.State) })

	// --- Act ---
	snap := c.RenderNow(ctx, "cube(1);")

	// --- Assert ---
	assert.Equal(t, render.RenderFailed, snap.State)
	assert.Contains(t, snap.Error, "engine failed to load")
	assert.Equal(t, []render.State{render.EngineLoading, render.RenderFailed}, states)

	again := c.RenderNow(ctx, "cube(2);")
	assert.Equal(t, render.RenderFailed, again.State)
	assert.Contains(t, again.Error, "wasm missing")
}

func TestRenderNow_StatesPublishedInOrder(t *testing.T) {
	t.Parallel()
	c, _, _ := realStack(t, testutil.Succeed(testutil.CubeSTL(1), 0))
	ctx, _ := testutil.Context(t)
	var seen []render.Snapshot
	cancel := c.Subscribe(func(s render.Snapshot) { seen = append(seen, s) })

	c.RenderNow(ctx, "cube(1);")
	cancel()
	c.RenderNow(ctx, "cube(2);")

	require.Len(t, seen, 3)
	assert.Equal(t, render.EngineLoading, seen[0].State)
	assert.True(t, seen[0].IsLoading)
	assert.Equal(t, render.Compiling, seen[1].State)
	assert.True(t, seen[1].IsRendering)
	assert.Equal(t, render.Rendered, seen[2].State)
}

func TestSubscribe_DeliveredSnapshotIsCurrentState(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	c, _, _ := realStack(t, testutil.Succeed(testutil.CubeSTL(1), 0))
	ctx, _ := testutil.Context(t)
	var mu sync.Mutex
	var last render.Snapshot
	c.Subscribe(func(s render.Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	})

	// --- Act ---
	c.RenderNow(ctx, "cube(1);")

	// --- Assert ---
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, c.Snapshot(), last)
}

func TestRenderNow_LateResultIsDiscarded(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	slowMesh := testutil.CubeMesh(1)
	fastMesh := testutil.CubeMesh(2)
	backend := &fakeBackend{status: engine.Ready}
	backend.compile = func(_ context.Context, src string) (*engine.CompileOutput, error) {
		if src == "cube(1);" {
			close(slowStarted)
			<-releaseSlow
			return &engine.CompileOutput{Mesh: slowMesh}, nil
		}
		return &engine.CompileOutput{Mesh: fastMesh}, nil
	}
	c := render.New(ctx, backend, render.Config{})
	t.Cleanup(c.Close)

	// --- Act ---
	slowDone := make(chan render.Snapshot, 1)
	go func() { slowDone <- c.RenderNow(ctx, "cube(1);") }()
	<-slowStarted
	fast := c.RenderNow(ctx, "cube(2);")
	close(releaseSlow)
	late := <-slowDone

	// --- Assert ---
	assert.Same(t, fastMesh, fast.Mesh)
	assert.Same(t, fastMesh, late.Mesh, "superseded request returns the current view")
	final := c.Snapshot()
	assert.Equal(t, render.Rendered, final.State)
	assert.Same(t, fastMesh, final.Mesh)
	assert.EqualValues(t, 2, final.RequestID)
}

func TestOnSourceChanged_DebouncesToLastText(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{status: engine.Ready}
	c := render.New(ctx, backend, render.Config{Debounce: 30 * time.Millisecond})
	t.Cleanup(c.Close)

	// --- Act ---
	for _, src := range []string{"cube(1);", "cube(2);", "cube(3);", "cube(4);", "cube(5);"} {
		c.OnSourceChanged(src)
		time.Sleep(2 * time.Millisecond)
	}

	// --- Assert ---
	require.Eventually(t, func() bool { return c.Snapshot().State == render.Rendered }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"cube(5);"}, backend.Compiles())
}

func TestOnSourceChanged_SkipsUnchangedText(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{status: engine.Ready}
	c := render.New(ctx, backend, render.Config{Debounce: 10 * time.Millisecond})
	t.Cleanup(c.Close)
	c.RenderNow(ctx, "cube(1);")

	c.OnSourceChanged("cube(1);")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"cube(1);"}, backend.Compiles())
}

func TestRenderNow_CancelsPendingDebounce(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{status: engine.Ready}
	c := render.New(ctx, backend, render.Config{Debounce: 20 * time.Millisecond})
	t.Cleanup(c.Close)

	c.OnSourceChanged("cube(1);")
	c.RenderNow(ctx, "cube(2);")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []string{"cube(2);"}, backend.Compiles())
}

func TestClose_StopsDebounce(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{status: engine.Ready}
	c := render.New(ctx, backend, render.Config{Debounce: 10 * time.Millisecond})

	c.OnSourceChanged("cube(1);")
	c.Close()
	c.OnSourceChanged("cube(2);")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, backend.Compiles())
}

func TestValidate_LintErrorsSkipEngine(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	c, fake, seq := realStack(t, nil)
	ctx, _ := testutil.Context(t)

	// --- Act ---
	first, err1 := c.Validate(ctx, "cube([10,10,10]")
	second, err2 := c.Validate(ctx, "cube([10,10,10]")

	// --- Assert ---
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.False(t, first.Valid)
	require.Len(t, first.Errors, 1)
	assert.Contains(t, first.Errors[0], "1:5: error: unclosed '('")
	assert.Equal(t, first, second)
	assert.EqualValues(t, 0, seq.Submitted())
	assert.Empty(t, fake.Calls())
	assert.Equal(t, render.Idle, c.Snapshot().State)
}

func TestValidate_CleanSourceUsesEngineWithoutChangingState(t *testing.T) {
	t.Parallel()
	c, fake, _ := realStack(t, nil)
	ctx, _ := testutil.Context(t)

	got, err := c.Validate(ctx, "cube(1);")

	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.Len(t, fake.Calls(), 1)
	assert.Equal(t, render.Idle, c.Snapshot().State)
	assert.EqualValues(t, 0, c.Snapshot().RequestID)
}

func TestImportMesh(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{status: engine.Ready}
	c := render.New(ctx, backend, render.Config{})
	t.Cleanup(c.Close)

	// --- Act ---
	_, badErr := c.ImportMesh(ctx, []byte("garbage"))
	snap, err := c.ImportMesh(ctx, mesh.EncodeText(testutil.CubeMesh(2), "cube"))

	// --- Assert ---
	assert.Error(t, badErr)
	require.NoError(t, err)
	assert.Equal(t, render.Rendered, snap.State)
	assert.Equal(t, 12, snap.Mesh.TriangleCount())
	assert.EqualValues(t, 1, snap.RequestID)
	assert.Empty(t, backend.Compiles())
}

func TestPreload_LoadsThenReturnsToIdle(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{}
	c := render.New(ctx, backend, render.Config{})
	t.Cleanup(c.Close)
	var states []render.State
	c.Subscribe(func(s render.Snapshot) { states = append(states, s.State) })

	// --- Act ---
	err := c.Preload(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []render.State{render.EngineLoading, render.Idle}, states)
	assert.Equal(t, engine.Ready, backend.Status())
	assert.NoError(t, c.Preload(ctx))
	assert.Len(t, states, 2)
}

func TestPreload_FailureIsVisible(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	backend := &fakeBackend{readyErr: errors.New("no engine")}
	c := render.New(ctx, backend, render.Config{})
	t.Cleanup(c.Close)

	err := c.Preload(ctx)

	assert.Error(t, err)
	snap := c.Snapshot()
	assert.Equal(t, render.RenderFailed, snap.State)
	assert.Equal(t, "no engine", snap.Error)
}

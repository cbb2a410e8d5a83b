package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"

	"github.com/specialistvlad/scadlive/internal/engine"
)

// Call describes one fake CallMain invocation as seen by a Handler.
type Call struct {
	Args  []string
	Input string

	fake *FakeEngine
	hook func(string)
}

// Stderr sends a line through the currently installed error hook.
func (c *Call) Stderr(line string) {
	if c.hook != nil {
		c.hook(line)
	}
}

// OutputPath returns the argument following "-o", or "" when absent.
func (c *Call) OutputPath() string {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == "-o" {
			return c.Args[i+1]
		}
	}
	return ""
}

// WriteOutput writes data to the file named by OutputPath.
func (c *Call) WriteOutput(data []byte) error {
	return hackpadfs.WriteFullFile(c.fake.fs, engine.NormPath(c.OutputPath()), data, 0o644)
}

// Handler scripts the behaviour of one call.
type Handler func(ctx context.Context, call *Call) (status int, err error)

// FakeEngine is an in-memory engine.Engine. Every call reads the scratch
// input, then runs Handler.
type FakeEngine struct {
	Handler Handler
	// Delay is slept before the handler runs, honouring ctx.
	Delay time.Duration

	fs *mem.FS

	mu      sync.Mutex
	hook    func(string)
	calls   []*Call
	records []ExecutionRecord

	active    atomic.Int32
	maxActive atomic.Int32
}

// NewFakeEngine returns a fake with an empty memory filesystem.
func NewFakeEngine(h Handler) *FakeEngine {
	fsys, err := mem.NewFS()
	if err != nil {
		panic(err)
	}
	return &FakeEngine{Handler: h, fs: fsys}
}

// FS implements engine.Engine.
func (f *FakeEngine) FS() hackpadfs.FS { return f.fs }

// SetErrorHook implements engine.Engine.
func (f *FakeEngine) SetErrorHook(hook func(string)) func(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.hook
	f.hook = hook
	return prev
}

// Hook returns the installed error hook.
func (f *FakeEngine) Hook() func(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hook
}

// CallMain implements engine.Engine.
func (f *FakeEngine) CallMain(ctx context.Context, args []string) (int, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.maxActive.Load()
		if n <= peak || f.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	rec := ExecutionRecord{Start: time.Now()}
	defer func() {
		rec.End = time.Now()
		f.mu.Lock()
		f.records = append(f.records, rec)
		f.mu.Unlock()
	}()

	input, _ := hackpadfs.ReadFile(f.fs, engine.NormPath(engine.InputPath))
	call := &Call{Args: append([]string(nil), args...), Input: string(input), fake: f, hook: f.Hook()}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	if f.Handler == nil {
		return 0, nil
	}
	return f.Handler(ctx, call)
}

// Calls returns the recorded calls in order.
func (f *FakeEngine) Calls() []*Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Call(nil), f.calls...)
}

// Records returns the timing of every finished call.
func (f *FakeEngine) Records() []ExecutionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExecutionRecord(nil), f.records...)
}

// MaxActive is the highest number of simultaneous CallMain invocations seen.
func (f *FakeEngine) MaxActive() int32 { return f.maxActive.Load() }

// Succeed returns a Handler that writes data as the output artifact and exits
// with status.
func Succeed(data []byte, status int) Handler {
	return func(_ context.Context, c *Call) (int, error) {
		if err := c.WriteOutput(data); err != nil {
			return -1, err
		}
		return status, nil
	}
}

// Fail returns a Handler that writes lines to stderr and exits with status
// without producing an artifact.
func Fail(status int, lines ...string) Handler {
	return func(_ context.Context, c *Call) (int, error) {
		for _, l := range lines {
			c.Stderr(l)
		}
		return status, nil
	}
}

// FakeLoader counts loads and returns Engine or Err after Delay.
type FakeLoader struct {
	Engine engine.Engine
	Err    error
	Delay  time.Duration

	loads atomic.Int32
}

// Load implements engine.Loader.
func (l *FakeLoader) Load(ctx context.Context) (engine.Engine, error) {
	l.loads.Add(1)
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Engine, nil
}

// Loads returns how many times Load was called.
func (l *FakeLoader) Loads() int32 { return l.loads.Load() }

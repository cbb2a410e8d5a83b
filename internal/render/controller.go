package render

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/diag"
	"github.com/specialistvlad/scadlive/internal/engine"
	"github.com/specialistvlad/scadlive/internal/lint"
	"github.com/specialistvlad/scadlive/internal/mesh"
)

// DefaultDebounce is the quiet period after the last edit before a render.
const DefaultDebounce = 1500 * time.Millisecond

// Backend is the engine surface the controller depends on. *engine.Handle
// implements it.
type Backend interface {
	Ready(ctx context.Context) error
	Status() engine.Status
	Compile(ctx context.Context, src string) (*engine.CompileOutput, error)
	Validate(ctx context.Context, src string) (engine.Validation, error)
}

// Config tunes a Controller.
type Config struct {
	Debounce time.Duration
}

// Controller owns the preview state for one editor.
type Controller struct {
	backend  Backend
	debounce time.Duration
	// ctx is used for renders started by the debounce timer.
	ctx context.Context

	mu       sync.Mutex
	state    State
	mesh     *mesh.Mesh
	err      string
	diags    []diag.Diagnostic
	logs     []string
	issued   uint64
	accepted *string
	latest   string
	timer    *time.Timer
	gen      uint64
	closed   bool

	// notifyMu is taken before mu is released so deliveries keep the order
	// of the changes that produced them.
	notifyMu sync.Mutex
	subs     map[uint64]func(Snapshot)
	nextSub  uint64
}

// New creates a controller in the Idle state. ctx supplies the logger for
// debounced renders.
func New(ctx context.Context, backend Backend, cfg Config) *Controller {
	d := cfg.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Controller{
		backend:  backend,
		debounce: d,
		ctx:      ctx,
		subs:     make(map[uint64]func(Snapshot)),
	}
}

// OnSourceChanged records text as the latest edit and restarts the debounce
// timer.
func (c *Controller) OnSourceChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.latest = text
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	text := c.latest
	if c.accepted != nil && *c.accepted == text {
		c.mu.Unlock()
		ctxlog.FromContext(c.ctx).Debug("Debounced text unchanged, skipping render.")
		return
	}
	c.mu.Unlock()
	c.RenderNow(c.ctx, text)
}

// cancelPendingLocked drops any scheduled debounce fire.
func (c *Controller) cancelPendingLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// RenderNow renders text immediately and returns the snapshot once this
// request settles. If a newer request superseded it, the current snapshot is
// returned instead.
func (c *Controller) RenderNow(ctx context.Context, text string) Snapshot {
	logger := ctxlog.FromContext(ctx)

	c.mu.Lock()
	c.cancelPendingLocked()
	c.accepted = &text
	c.issued++
	id := c.issued

	if strings.TrimSpace(text) == "" {
		c.state = Idle
		c.mesh, c.err, c.diags, c.logs = nil, "", nil, nil
		logger.Debug("Blank source, cleared preview.", "request_id", id)
		return c.publishLocked()
	}

	res := lint.Check(text)
	if !res.Valid {
		c.state = LintFailed
		c.err = ""
		c.diags = res.Diagnostics
		c.logs = nil
		logger.Debug("Lint failed, not compiling.", "request_id", id, "errors", len(res.Errors()))
		return c.publishLocked()
	}
	warnings := res.Warnings()

	if c.backend.Status() != engine.Ready {
		c.state = EngineLoading
		c.publishLocked()

		if err := c.backend.Ready(ctx); err != nil {
			c.mu.Lock()
			if id != c.issued {
				return c.snapshotUnlock()
			}
			c.state = RenderFailed
			c.err = err.Error()
			c.diags = warnings
			c.logs = engine.LogOf(err)
			logger.Error("Engine unavailable, render failed.", "request_id", id, "error", err)
			return c.publishLocked()
		}
		c.mu.Lock()
		if id != c.issued {
			return c.snapshotUnlock()
		}
	}

	c.state = Compiling
	c.publishLocked()

	start := time.Now()
	out, err := c.backend.Compile(ctx, text)

	c.mu.Lock()
	if id != c.issued {
		logger.Debug("Discarding superseded result.", "request_id", id, "latest", c.issued)
		return c.snapshotUnlock()
	}
	if err != nil {
		log := engine.LogOf(err)
		c.state = RenderFailed
		c.err = err.Error()
		c.logs = log
		c.diags = append(append([]diag.Diagnostic(nil), warnings...), diag.ParseEngineOutput(log)...)
		logger.Warn("Render failed.", "request_id", id, "error", err)
		return c.publishLocked()
	}
	c.state = Rendered
	c.mesh = out.Mesh
	c.err = ""
	c.logs = out.Log
	c.diags = warnings
	logger.Info("✅ Rendered model.", "request_id", id, "triangles", out.Mesh.TriangleCount(), "took", time.Since(start).Round(time.Millisecond))
	return c.publishLocked()
}

// Validate checks text without touching the preview. Lint errors are
// reported without consulting the engine.
func (c *Controller) Validate(ctx context.Context, text string) (engine.Validation, error) {
	res := lint.Check(text)
	if !res.Valid {
		errs := res.Errors()
		v := engine.Validation{Valid: false, Errors: make([]string, 0, len(errs))}
		for _, d := range errs {
			v.Errors = append(v.Errors, d.String())
		}
		return v, nil
	}
	return c.backend.Validate(ctx, text)
}

// ImportMesh shows an externally produced mesh, superseding any compile in
// flight.
func (c *Controller) ImportMesh(ctx context.Context, data []byte) (Snapshot, error) {
	m, err := mesh.Decode(data)
	if err != nil {
		return c.Snapshot(), err
	}
	c.mu.Lock()
	c.cancelPendingLocked()
	c.issued++
	c.accepted = nil
	c.state = Rendered
	c.mesh = m
	c.err, c.diags, c.logs = "", nil, nil
	ctxlog.FromContext(ctx).Info("📥 Imported mesh.", "request_id", c.issued, "triangles", m.TriangleCount())
	return c.publishLocked(), nil
}

// Preload starts loading the engine ahead of the first render.
func (c *Controller) Preload(ctx context.Context) error {
	if c.backend.Status() == engine.Ready {
		return nil
	}
	c.mu.Lock()
	id := c.issued
	showLoading := c.state == Idle
	if showLoading {
		c.state = EngineLoading
		c.publishLocked()
	} else {
		c.mu.Unlock()
	}

	err := c.backend.Ready(ctx)
	if !showLoading {
		return err
	}

	c.mu.Lock()
	if id != c.issued || c.state != EngineLoading {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.state = RenderFailed
		c.err = err.Error()
	} else {
		c.state = Idle
	}
	c.publishLocked()
	return err
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every change. fn runs on the goroutine that made
// the change, while that goroutine holds the delivery lock. A publisher on
// another goroutine holds the state lock while it waits for the delivery
// lock, so fn must not call any controller method, Snapshot and Subscribe
// included: it would block on one of those locks and deadlock. Everything fn
// needs is in the Snapshot it receives; hand longer work to another
// goroutine.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.notifyMu.Lock()
		defer c.notifyMu.Unlock()
		delete(c.subs, id)
	}
}

// Close stops the debounce timer. Renders already started still finish.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelPendingLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:       c.state,
		Mesh:        c.mesh,
		IsRendering: c.state == Compiling,
		IsLoading:   c.state == EngineLoading,
		Error:       c.err,
		Diagnostics: append([]diag.Diagnostic(nil), c.diags...),
		Logs:        append([]string(nil), c.logs...),
		RequestID:   c.issued,
	}
}

func (c *Controller) snapshotUnlock() Snapshot {
	s := c.snapshotLocked()
	c.mu.Unlock()
	return s
}

// publishLocked releases mu and delivers the new snapshot to subscribers.
func (c *Controller) publishLocked() Snapshot {
	s := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		c.subs[id](s)
	}
	return s
}

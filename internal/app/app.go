package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/scadlive/internal/config"
	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/engine"
	"github.com/specialistvlad/scadlive/internal/procengine"
	"github.com/specialistvlad/scadlive/internal/render"
	"github.com/specialistvlad/scadlive/internal/sequencer"
	"github.com/specialistvlad/scadlive/internal/wasmengine"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config
	conf   *config.Config
	loader engine.Loader
}

// Option customizes an App.
type Option func(*App)

// WithLoader replaces the engine loader chosen from the configuration.
func WithLoader(l engine.Loader) Option {
	return func(a *App) { a.loader = l }
}

// New loads the config file named by cfg, applies the command-line
// overrides and builds the logger.
func New(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	conf := config.Default()
	if cfg.ConfigPath != "" {
		var err error
		conf, err = config.Load(context.Background(), cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if cfg.Listen != "" {
		conf.Server.Listen = cfg.Listen
	}
	if cfg.EngineKind != "" {
		conf.Engine.Kind = cfg.EngineKind
	}
	if cfg.LogLevel != "" {
		conf.Log.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		conf.Log.Format = cfg.LogFormat
	}

	logger, err := newLogger(conf.Log, outW)
	if err != nil {
		return nil, err
	}
	logger.Debug("Logger configured successfully.")

	a := &App{outW: outW, logger: logger, cfg: cfg, conf: conf}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = loaderFor(conf.Engine)
	}
	return a, nil
}

// Settings returns the merged file configuration. This is primarily for testing.
func (a *App) Settings() *config.Config {
	return a.conf
}

func loaderFor(ec config.EngineConfig) engine.Loader {
	if ec.Kind == config.KindProcess {
		return procengine.Loader{Binary: ec.Binary, ScratchDir: ec.ScratchDir}
	}
	return wasmengine.Loader{Path: ec.WasmPath, ScratchDir: ec.ScratchDir}
}

// stack is the engine pipeline behind one controller.
type stack struct {
	seq     *sequencer.Sequencer
	session *engine.Session
	handle  *engine.Handle
	ctrl    *render.Controller
}

func (a *App) newStack(ctx context.Context) *stack {
	seq := sequencer.New()
	session := engine.NewSession(a.loader)
	handle := engine.NewHandle(session, seq, a.conf.Engine.HandleConfig())
	ctrl := render.New(ctx, handle, a.conf.Render.ControllerConfig())
	ctxlog.FromContext(ctx).Debug("Engine stack built.", "engine", a.conf.Engine.Kind, "debounce", a.conf.Render.Debounce, "timeout", a.conf.Engine.Timeout)
	return &stack{seq: seq, session: session, handle: handle, ctrl: ctrl}
}

func (s *stack) close(ctx context.Context) {
	s.ctrl.Close()
	s.seq.Close()
	if err := s.session.Close(context.WithoutCancel(ctx)); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to release engine.", "error", err)
	}
}

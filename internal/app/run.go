package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
	"github.com/specialistvlad/scadlive/internal/fsutil"
	"github.com/specialistvlad/scadlive/internal/preview"
	"github.com/specialistvlad/scadlive/internal/remote"
	"github.com/specialistvlad/scadlive/internal/render"
	"github.com/specialistvlad/scadlive/internal/watch"
)

// ErrCheckFailed is returned by check and push runs whose render did not
// produce a mesh.
var ErrCheckFailed = errors.New("render failed")

// Run executes the configured mode until it finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.cfg.Mode)
	defer a.logger.Debug("App.Run method finished.")

	if a.cfg.Mode == ModePush {
		return a.push(ctx)
	}

	st := a.newStack(ctx)
	defer st.close(ctx)

	if a.cfg.Mode == ModeCheck {
		return a.check(ctx, st)
	}
	return a.live(ctx, st)
}

// live runs the long-lived surfaces: the preview server, the file watcher
// or both.
func (a *App) live(ctx context.Context, st *stack) error {
	logger := ctxlog.FromContext(ctx)
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Mode == ModeServe || a.cfg.Listen != "" {
		srv := preview.New(gctx, st.ctrl, st.handle.Status)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, a.conf.Server.Listen)
		})
	}
	if a.cfg.WatchPath != "" {
		cancel := st.ctrl.Subscribe(func(s render.Snapshot) {
			if s.State.Terminal() {
				printSnapshot(a.outW, s)
			}
		})
		defer cancel()
		g.Go(func() error {
			return watch.File{Path: a.cfg.WatchPath, Sink: st.ctrl}.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := st.ctrl.Preload(gctx); err != nil {
			logger.Error("Engine preload failed.", "error", err)
		}
		return nil
	})

	logger.Info("🚀 scadlive running.", "engine", a.conf.Engine.Kind)
	err := g.Wait()
	logger.Info("🏁 scadlive stopped.")
	return err
}

// check renders CheckPath once. A directory checks every .scad file in it.
func (a *App) check(ctx context.Context, st *stack) error {
	paths := []string{a.cfg.CheckPath}
	if info, err := os.Stat(a.cfg.CheckPath); err == nil && info.IsDir() {
		paths, err = fsutil.FindFilesByExtension(a.cfg.CheckPath, ".scad")
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", a.cfg.CheckPath, err)
		}
		ctxlog.FromContext(ctx).Debug("Checking directory.", "files", len(paths))
	}

	var failed []string
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if len(paths) > 1 {
			fmt.Fprintf(a.outW, "== %s\n", path)
		}
		snap := st.ctrl.RenderNow(ctx, string(src))
		printSnapshot(a.outW, snap)
		if stateErr(snap) != nil {
			failed = append(failed, path)
		}
	}
	if len(failed) == 1 {
		return fmt.Errorf("%w: %s", ErrCheckFailed, failed[0])
	}
	if len(failed) > 1 {
		return fmt.Errorf("%w: %d of %d files", ErrCheckFailed, len(failed), len(paths))
	}
	return nil
}

func (a *App) push(ctx context.Context) error {
	src, err := os.ReadFile(a.cfg.PushPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", a.cfg.PushPath, err)
	}
	timeout := 2 * a.conf.Engine.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snap, err := remote.Push(ctx, a.cfg.ServerURL, string(src), remote.Options{})
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	printSnapshot(a.outW, snap)
	return stateErr(snap)
}

func stateErr(snap render.Snapshot) error {
	switch snap.State {
	case render.LintFailed, render.RenderFailed:
		return fmt.Errorf("%w: %s", ErrCheckFailed, snap.State)
	}
	return nil
}

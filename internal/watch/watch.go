// Package watch feeds a source file's contents into a render controller
// whenever the file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/scadlive/internal/ctxlog"
)

// Sink receives the file contents. *render.Controller satisfies it.
type Sink interface {
	OnSourceChanged(text string)
}

// File watches the directory of Path so editors that save by renaming a
// temporary file are still seen.
type File struct {
	Path string
	Sink Sink
}

// Run sends the current contents once, then on every change, until ctx is
// done.
func (f File) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("path", f.Path)
	target, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", f.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	if err := f.push(target); err != nil {
		return err
	}
	logger.Info("👀 Watching source file.")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Watcher stopped.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("Source file changed.", "op", event.Op.String())
			if err := f.push(target); err != nil {
				logger.Warn("Failed to read changed file.", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error.", "error", err)
		}
	}
}

func (f File) push(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// Between the remove and create of a rename-based save.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	f.Sink.OnSourceChanged(string(data))
	return nil
}

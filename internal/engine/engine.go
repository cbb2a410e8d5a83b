package engine

import (
	"context"

	"github.com/hack-pad/hackpadfs"
)

// Engine is one loaded instance of the external compiler, reduced to the
// narrow contract the handle needs.
type Engine interface {
	// FS is the engine's private scratch filesystem. Paths are rooted.
	FS() hackpadfs.FS
	// SetErrorHook installs the single error-channel callback and returns
	// the previous one. A nil hook discards output.
	SetErrorHook(hook func(line string)) (previous func(line string))
	// CallMain invokes the entry point with argv (without the program name).
	// Engines may report failure through the status, through an
	// *ExitStatusError, or not at all.
	CallMain(ctx context.Context, args []string) (status int, err error)
}

// Loader produces the engine. It is called at most once per Session.
type Loader interface {
	Load(ctx context.Context) (Engine, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Engine, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Engine, error) {
	return f(ctx)
}

// closer is implemented by engines that hold releasable resources.
type closer interface {
	Close(ctx context.Context) error
}

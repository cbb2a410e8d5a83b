package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/scadlive/internal/config"
)

// newLogger builds the application logger from the merged log settings. It
// does not set the global logger. Unknown levels and formats are errors.
func newLogger(lc config.LogConfig, outW io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch lc.Format {
	case config.FormatJSON:
		return slog.New(slog.NewJSONHandler(outW, opts)), nil
	case config.FormatText:
		return slog.New(slog.NewTextHandler(outW, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", lc.Format)
	}
}

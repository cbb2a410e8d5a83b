package config

import (
	"log/slog"
	"time"

	"github.com/specialistvlad/scadlive/internal/engine"
	"github.com/specialistvlad/scadlive/internal/render"
)

// Engine kinds.
const (
	KindWasm    = "wasm"
	KindProcess = "process"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidLogLevel reports whether s is a level slog can parse, such as "debug"
// or "warn".
func ValidLogLevel(s string) bool {
	var l slog.Level
	return l.UnmarshalText([]byte(s)) == nil
}

// ValidLogFormat reports whether s names a supported log format.
func ValidLogFormat(s string) bool {
	return s == FormatText || s == FormatJSON
}

// Config is the decoded application configuration.
type Config struct {
	Engine EngineConfig
	Render RenderConfig
	Server ServerConfig
	Log    LogConfig
}

// EngineConfig selects and tunes the compiler adapter.
type EngineConfig struct {
	Kind          string
	WasmPath      string
	Binary        string
	ScratchDir    string
	Timeout       time.Duration
	RenderFlags   []string
	ValidateFlags []string
}

// RenderConfig tunes the render controller.
type RenderConfig struct {
	Debounce time.Duration
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Listen string
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	ec := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Kind:          KindWasm,
			Binary:        "openscad",
			Timeout:       ec.Timeout,
			RenderFlags:   ec.RenderFlags,
			ValidateFlags: ec.ValidateFlags,
		},
		Render: RenderConfig{Debounce: render.DefaultDebounce},
		Server: ServerConfig{Listen: ":8080"},
		Log:    LogConfig{Level: "info", Format: FormatText},
	}
}

// HandleConfig converts the engine block into engine.Config.
func (c EngineConfig) HandleConfig() engine.Config {
	return engine.Config{
		RenderFlags:   c.RenderFlags,
		ValidateFlags: c.ValidateFlags,
		Timeout:       c.Timeout,
	}
}

// ControllerConfig converts the render block into render.Config.
func (c RenderConfig) ControllerConfig() render.Config {
	return render.Config{Debounce: c.Debounce}
}

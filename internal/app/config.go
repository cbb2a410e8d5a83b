package app

import "errors"

// Mode selects what Run does.
type Mode int

const (
	// ModeServe runs the preview server.
	ModeServe Mode = iota
	// ModeWatch re-renders a file on every save and prints each result.
	ModeWatch
	// ModeCheck renders a file once and reports the outcome.
	ModeCheck
	// ModePush sends a file to a running preview server.
	ModePush
)

// Config holds the command-line level settings. Empty override fields keep
// the value from the config file.
type Config struct {
	ConfigPath string
	Mode       Mode

	WatchPath string
	CheckPath string
	PushPath  string
	ServerURL string

	Listen     string
	EngineKind string
	LogFormat  string
	LogLevel   string
}

// NewConfig validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Mode {
	case ModeWatch:
		if cfg.WatchPath == "" {
			return nil, errors.New("watch mode requires a file to watch")
		}
	case ModeCheck:
		if cfg.CheckPath == "" {
			return nil, errors.New("check mode requires a file to check")
		}
	case ModePush:
		if cfg.PushPath == "" || cfg.ServerURL == "" {
			return nil, errors.New("push mode requires both a file and a server URL")
		}
	}
	return &cfg, nil
}

func (m Mode) String() string {
	switch m {
	case ModeServe:
		return "serve"
	case ModeWatch:
		return "watch"
	case ModeCheck:
		return "check"
	case ModePush:
		return "push"
	default:
		return "unknown"
	}
}

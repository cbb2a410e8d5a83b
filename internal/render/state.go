package render

import (
	"fmt"

	"github.com/specialistvlad/scadlive/internal/diag"
	"github.com/specialistvlad/scadlive/internal/mesh"
)

// State is the controller's position in the render lifecycle.
type State int

const (
	Idle State = iota
	EngineLoading
	LintFailed
	Compiling
	Rendered
	RenderFailed
)

var stateNames = [...]string{
	Idle:          "idle",
	EngineLoading: "engine_loading",
	LintFailed:    "lint_failed",
	Compiling:     "compiling",
	Rendered:      "rendered",
	RenderFailed:  "render_failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown render state %q", b)
}

// Terminal reports whether the state ends a request.
func (s State) Terminal() bool {
	return s != EngineLoading && s != Compiling
}

// Snapshot is an immutable copy of the controller's view.
type Snapshot struct {
	State       State             `json:"state"`
	Mesh        *mesh.Mesh        `json:"mesh"`
	IsRendering bool              `json:"isRendering"`
	IsLoading   bool              `json:"isLoading"`
	Error       string            `json:"error,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Logs        []string          `json:"logs"`
	RequestID   uint64            `json:"requestId"`
}

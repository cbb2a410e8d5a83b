package diag

import "fmt"

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so snapshots serialize the name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the name produced by MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = Error
	case "warning":
		*s = Warning
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Origin records which checker produced a Diagnostic.
type Origin int

const (
	StaticLint Origin = iota
	EngineOutput
)

func (o Origin) String() string {
	switch o {
	case StaticLint:
		return "lint"
	case EngineOutput:
		return "engine"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses the name produced by MarshalText.
func (o *Origin) UnmarshalText(b []byte) error {
	switch string(b) {
	case "lint":
		*o = StaticLint
	case "engine":
		*o = EngineOutput
	default:
		return fmt.Errorf("unknown origin %q", b)
	}
	return nil
}

// Diagnostic is a single positioned message for the editor. Line and Column
// are 1-based. EndColumn is exclusive; zero means the marker runs to the end
// of the line.
type Diagnostic struct {
	Line      int      `json:"line"`
	Column    int      `json:"column"`
	EndColumn int      `json:"endColumn"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Origin    Origin   `json:"origin"`
}

// String renders the diagnostic the way the CLI prints it.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// HasErrors reports whether any diagnostic has Error severity.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Filter returns the diagnostics with the given severity, preserving order.
func Filter(ds []Diagnostic, sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

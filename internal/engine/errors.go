package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineInit matches any *EngineInitError via errors.Is.
	ErrEngineInit = errors.New("engine failed to load")
	// ErrTimeout is wrapped by operations that exceeded Config.Timeout.
	ErrTimeout = errors.New("engine operation timed out")
)

// EngineInitError reports that the engine could not be loaded. It is sticky
// for the lifetime of the Session.
type EngineInitError struct {
	Cause error
}

func (e *EngineInitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEngineInit, e.Cause)
}

// Unwrap returns the load failure.
func (e *EngineInitError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrEngineInit) match.
func (e *EngineInitError) Is(target error) bool { return target == ErrEngineInit }

// ExitStatusError is how adapters report a numeric status thrown by the
// engine's entry point.
type ExitStatusError struct {
	Code int
}

func (e *ExitStatusError) Error() string {
	return fmt.Sprintf("engine exited with status %d", e.Code)
}

// NoGeometryError reports that the engine ran but left no usable artifact.
type NoGeometryError struct {
	Reason   string
	Log      []string
	ExitCode int
	Cause    error
}

func (e *NoGeometryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	return b.String()
}

// Unwrap returns the underlying read or decode failure, if any.
func (e *NoGeometryError) Unwrap() error { return e.Cause }

// LogOf returns the engine log attached to err, if it carries one.
func LogOf(err error) []string {
	var ng *NoGeometryError
	if errors.As(err, &ng) {
		return ng.Log
	}
	return nil
}

// Package engine owns the single instance of the external compilation engine
// and turns "compile this source to a mesh" and "check this source" into
// calls against the engine's entry point, scratch filesystem and error hook.
//
// # Lifecycle
//
// A Session is created explicitly and loads its engine lazily, exactly once.
// Concurrent callers during the load wait on the same attempt. A failed load
// is sticky: the session stays Failed until the process restarts.
//
// # Success is decided by the artifact
//
// The engine's exit signalling is unreliable: it reports non-zero statuses on
// paths that produced a perfectly good model. Handle therefore always reads
// the output file after a call and classifies the call as successful if and
// only if that file exists, is non-empty and decodes to at least one
// triangle. The exit status only enriches the failure log.
//
// # Exclusion
//
// The error hook and the scratch filenames are shared by every call, so
// Handle runs all of its engine work on a sequencer.Sequencer.
package engine

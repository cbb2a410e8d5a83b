// Package diag defines the editor-facing Diagnostic model shared by the static
// linter and the engine output parser.
//
// Diagnostics are kept in discovery order and are never deduplicated across
// origins: a lint warning and an engine warning on the same line are both
// shown, because they come from different checkers.
package diag

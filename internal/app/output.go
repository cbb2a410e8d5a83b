package app

import (
	"fmt"
	"io"

	"github.com/specialistvlad/scadlive/internal/render"
)

// printSnapshot writes a human-readable summary of a settled render.
func printSnapshot(w io.Writer, s render.Snapshot) {
	switch s.State {
	case render.Rendered:
		fmt.Fprintf(w, "✅ rendered %d triangles (request %d)\n", s.Mesh.TriangleCount(), s.RequestID)
	case render.Idle:
		fmt.Fprintln(w, "empty source, nothing to render")
	case render.LintFailed:
		fmt.Fprintf(w, "❌ lint failed (request %d)\n", s.RequestID)
	case render.RenderFailed:
		fmt.Fprintf(w, "❌ render failed: %s (request %d)\n", s.Error, s.RequestID)
	default:
		fmt.Fprintf(w, "%s (request %d)\n", s.State, s.RequestID)
	}
	for _, d := range s.Diagnostics {
		fmt.Fprintf(w, "  %s\n", d)
	}
	for _, l := range s.Logs {
		fmt.Fprintf(w, "  | %s\n", l)
	}
}

// Package preview serves the live preview to browsers over socket.io.
//
// Clients send "source" (debounced edit), "render" (immediate render),
// "validate" and "import" (base64 mesh) events. The server broadcasts a
// "snapshot" on every controller change and sends one to each new connection.
// Validation results go back to the asking client as "validation"; bad
// requests are answered with "failure".
//
// GET /health reports 503 once the engine has failed to load.
package preview

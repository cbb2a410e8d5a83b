// Package app wires configuration, the engine stack, the render controller
// and the outer surfaces (preview server, file watcher, one-shot check, push)
// into one lifecycle, decoupled from the CLI entrypoint.
package app

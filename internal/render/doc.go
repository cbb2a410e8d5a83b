// Package render turns a stream of source edits into a consistent preview.
//
// # Flow
//
// Edits arrive through OnSourceChanged and are debounced. When the timer
// fires, or when RenderNow is called directly, the text is linted first;
// texts with structural errors never reach the engine. Clean texts get a new
// request ID and are compiled through the Backend, which serializes engine
// access. A result is applied only while its ID is still the last one issued,
// so a slow compile can never overwrite the outcome of a newer edit.
//
// # Observing
//
// Snapshot returns the current view. Subscribe registers a callback that
// receives every new snapshot in order.
package render

// Package sequencer runs operations against a single shared resource one at
// a time, in the order they were submitted.
//
// # Why Sequencer Exists
//
// The compiler engine owns one scratch filesystem, one error-channel hook and
// internal state that is not reentrant. Socket handlers, debounce timers and
// CLI watchers all fire on their own goroutines, so without an explicit queue
// two rapid edits would start two compiles that overlap and corrupt each
// other's scratch files. Every engine-touching call goes through a Sequencer.
//
// # Guarantees
//
//   - FIFO: operations start in the order Do was called.
//   - Exclusion: at most one operation is in flight at any instant.
//   - Survival: an operation's error or panic never stops the queue.
//
// Cancellation is cooperative: a queued operation whose context is done
// before it starts is skipped, and a running operation sees its context.
package sequencer
